package scenario

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/dshills/ideactx-mcp/pkg/types"
)

var (
	mappingPattern       = regexp.MustCompile(`@(Get|Post|Put|Delete|Patch|Request)Mapping(\(([^)]*)\))?`)
	publicWordPattern    = regexp.MustCompile(`\bpublic\b`)
	publicMethodPattern  = regexp.MustCompile(`public\s+[\w<>,\[\]\s]+\s+(\w+)\s*\(`)
	requestMethodPattern = regexp.MustCompile(`(?i)RequestMethod\.(\w+)`)
	quotedPattern        = regexp.MustCompile(`"([^"]+)"`)
)

// ParseEndpoints scans Java source line by line and binds each mapping
// annotation to the next public method declaration
func ParseEndpoints(r io.Reader) []types.EndpointDescriptor {
	var out []types.EndpointDescriptor
	var verb, path string
	pending := false

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if m := mappingPattern.FindStringSubmatch(line); m != nil {
			pending = true
			verb = strings.ToUpper(m[1])
			params := m[3]
			path = ""
			if q := quotedPattern.FindStringSubmatch(params); q != nil {
				path = q[1]
			}
			if verb == "REQUEST" {
				if rm := requestMethodPattern.FindStringSubmatch(params); rm != nil {
					verb = strings.ToUpper(rm[1])
				}
			}
			continue
		}
		if !pending {
			continue
		}
		if strings.HasPrefix(line, "@") {
			continue
		}
		if publicWordPattern.MatchString(line) {
			if m := publicMethodPattern.FindStringSubmatch(line); m != nil {
				out = append(out, types.EndpointDescriptor{Name: m[1], HTTPVerb: verb, HTTPPath: path})
				pending = false
				verb, path = "", ""
			}
		}
	}
	return out
}

// parseEndpointsFile returns the endpoints declared in a Java file, or nil
func parseEndpointsFile(path string) []types.EndpointDescriptor {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	return ParseEndpoints(f)
}

// resolveSourcePath maps a hit file path to an existing file under the
// project root or the working directory
func (s *Specializer) resolveSourcePath(rel string) string {
	if rel == "" {
		return ""
	}
	var candidates []string
	if filepath.IsAbs(rel) {
		candidates = append(candidates, rel)
	} else {
		if s.projectRoot != "" {
			candidates = append(candidates, filepath.Join(s.projectRoot, rel))
		}
		candidates = append(candidates, rel)
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c
		}
	}
	return ""
}

// findJavaFiles walks roots in order and returns up to limit .java files whose
// lowercased name contains needle. Skipped directories and .gitignore
// matches are excluded.
func (s *Specializer) findJavaFiles(roots []string, needle string, limit int) []string {
	needle = strings.ToLower(needle)
	skip := make(map[string]struct{}, len(s.rules.ScanSkipDirs))
	for _, d := range s.rules.ScanSkipDirs {
		skip[d] = struct{}{}
	}

	var out []string
	for _, root := range roots {
		if info, err := os.Stat(root); err != nil || !info.IsDir() {
			continue
		}
		gi := loadGitignore(s.projectRoot, root)
		_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if len(out) >= limit {
				return filepath.SkipAll
			}
			name := d.Name()
			if d.IsDir() {
				if path == root {
					return nil
				}
				if _, ok := skip[name]; ok || strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if d.Type()&os.ModeSymlink != 0 {
				return nil
			}
			if !strings.HasSuffix(name, ".java") || !strings.Contains(strings.ToLower(name), needle) {
				return nil
			}
			if gi != nil {
				if rel, err := filepath.Rel(root, path); err == nil && gi.MatchesPath(rel) {
					return nil
				}
			}
			out = append(out, path)
			return nil
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}

// loadGitignore compiles the .gitignore at root, falling back to the project root's
func loadGitignore(projectRoot, root string) *ignore.GitIgnore {
	for _, dir := range []string{root, projectRoot} {
		if dir == "" {
			continue
		}
		if gi, err := ignore.CompileIgnoreFile(filepath.Join(dir, ".gitignore")); err == nil {
			return gi
		}
	}
	return nil
}

// sourceLocation describes a Java file relative to the project root
type sourceLocation struct {
	module   string
	fqn      string
	filePath string
	pkgPath  string
}

// locate derives module, FQN and normalized file path from an absolute Java file path
func (s *Specializer) locate(absPath, moduleHint string) sourceLocation {
	rel, err := filepath.Rel(s.projectRoot, absPath)
	if err != nil {
		rel = filepath.Base(absPath)
	}
	segments := strings.Split(filepath.ToSlash(rel), "/")
	module := segments[0]
	if len(segments) == 1 {
		module = moduleHint
		if module == "" {
			module = "default-module"
		}
	}
	pkgSegments := segments[min(1, len(segments)-1):]
	for i := 0; i+2 < len(segments); i++ {
		if segments[i] == "src" && segments[i+1] == "main" && segments[i+2] == "java" {
			pkgSegments = segments[i+3:]
			break
		}
	}
	pkgPath := strings.Join(pkgSegments, "/")
	return sourceLocation{
		module:   module,
		fqn:      strings.TrimSuffix(strings.Join(pkgSegments, "."), ".java"),
		filePath: strings.Join(append([]string{module, "src", "main", "java"}, pkgSegments...), "/"),
		pkgPath:  pkgPath,
	}
}

// scanRoots returns the module source root when it exists, else the project root
func (s *Specializer) scanRoots(moduleHint string) []string {
	if moduleHint != "" {
		moduleRoot := filepath.Join(s.projectRoot, moduleHint, "src", "main", "java")
		if info, err := os.Stat(moduleRoot); err == nil && info.IsDir() {
			return []string{moduleRoot}
		}
	}
	return []string{s.projectRoot}
}

// scanEntityFiles finds entity-named Java files under the module root first,
// then the whole project
func (s *Specializer) scanEntityFiles(entity, moduleHint string, limit int) []string {
	roots := s.scanRoots(moduleHint)
	files := s.findJavaFiles(roots, entity, limit)
	if len(files) == 0 && roots[0] != s.projectRoot {
		files = s.findJavaFiles([]string{s.projectRoot}, entity, limit)
	}
	return files
}
