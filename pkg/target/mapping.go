// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package target

import (
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// 📍 NameAndPath is the remote name of a file and the remote directory it goes to
type NameAndPath struct {
	Name string
	Path string
}

// Full returns the normalized remote path
func (np NameAndPath) Full() string {
	return NormalizePath(np.Path + "/" + np.Name)
}

// 🗺️ GetNameAndPathForFileDeployment resolves the remote name and directory of a local file.
// The second return value is false when the file is outside every scope directory, which means
// the file is out of scope for this target.
func GetNameAndPathForFileDeployment(t *Target, file string, scopeDirs []string) (NameAndPath, bool) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return NameAndPath{}, false
	}

	for _, dir := range scopeDirs {
		root, err := filepath.Abs(dir)
		if err != nil {
			continue
		}

		rel, err := filepath.Rel(root, abs)
		if err != nil || rel == "." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || rel == ".." {
			continue
		}

		rel = filepath.ToSlash(rel)
		relDir := path.Dir(rel)
		if relDir == "." {
			relDir = ""
		}

		return NameAndPath{
			Name: path.Base(rel),
			Path: mapDirectory(t, relDir),
		}, true
	}

	return NameAndPath{}, false
}

// mapDirectory applies the first matching folder mapping to a relative directory
func mapDirectory(t *Target, relDir string) string {
	if t != nil {
		for _, m := range t.Mappings {
			src := strings.Trim(filepath.ToSlash(m.Source), "/")
			if src == "" {
				continue
			}

			// exact or prefix match, the remainder is kept below the destination
			if relDir == src || strings.HasPrefix(relDir, src+"/") {
				return NormalizePath(m.Destination + "/" + strings.TrimPrefix(relDir, src))
			}

			if ok, _ := doublestar.Match(src, relDir); ok {
				return NormalizePath(m.Destination)
			}
		}
	}

	return NormalizePath(relDir)
}

// NormalizePath returns a slash separated, cleaned remote path with a leading slash
func NormalizePath(p string) string {
	p = strings.ReplaceAll(p, "\\", "/")
	p = path.Clean("/" + strings.TrimSpace(p))
	return p
}

// 🏠 ScopeDirectories returns the directories folder mappings are relative to.
// Directories from the "scope_dirs" option (comma separated, relative to the root) come first,
// the workspace root is always last.
func ScopeDirectories(t *Target, root string) []string {
	var dirs []string
	if t != nil {
		for _, d := range strings.Split(t.Option("scope_dirs", ""), ",") {
			d = strings.TrimSpace(d)
			if d == "" {
				continue
			}
			if !filepath.IsAbs(d) {
				d = filepath.Join(root, d)
			}
			dirs = append(dirs, d)
		}
	}
	return append(dirs, root)
}
