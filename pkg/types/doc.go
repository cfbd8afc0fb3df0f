// Package types provides shared type definitions for the ideactx MCP server.
//
// This package defines the domain types that flow through the query
// orchestration pipeline: symbol hits, their typed metadata, retrieval
// profiles, per-request strategies, stage provenance records and the
// context budget report.
//
// # Core Types
//
// SymbolHit is one retrieval result, as returned by the IDE bridge or the
// local vector store:
//
//	hit := types.SymbolHit{
//	    FQN:     "org.example.visits.web.VisitResource",
//	    Kind:    types.KindClass,
//	    Module:  "visits-service",
//	    Summary: "REST controller for visits",
//	}
//
// Metadata is a typed bag. Fields the pipeline interprets (annotations,
// caller counts, endpoint descriptors, impact members) are struct fields;
// anything else an upstream backend sends is kept verbatim in Extra so it
// round-trips through JSON unchanged. String-or-list fields such as
// annotations accept either JSON shape.
//
// # Requests
//
// SearchArgs is the wire form accepted by the MCP tool and the HTTP API. Its
// Request method validates bounds with go-playground/validator and returns a
// SearchRequest, whose zero values mean "not supplied":
//
//	req, err := types.SearchArgs{Query: "visit endpoints"}.Request()
//	if errors.Is(err, types.ErrInvalidRequest) {
//	    // reject before the pipeline runs
//	}
//
// # Roles
//
// RoleSet is an ordered, duplicate-free list of roles. The first role is the
// primary role used by role grouping.
package types
