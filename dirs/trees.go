// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2024 Canonical Ltd
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package dirs specifies the location of netprov-relevant directories
// and offers helpers to work with them including when they
// are relocated under a non-canonical root, as done in tests.
package dirs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir represents a directory at a well-known location.
type Dir struct {
	// Path is the directory path.
	Path string
	// rootLen is the length of the non-canonical root prefix of Path.
	rootLen int
}

// Ensure creates this directory, along with any necessary parents.
// Mode is used for any directory to create. If the directory already
// exists it does nothing.
func (d Dir) Ensure(mode os.FileMode) error {
	return os.MkdirAll(d.Path, mode)
}

// Join joins this directory path with the given path elements.
func (d Dir) Join(elem ...string) string {
	return filepath.Join(d.Path, filepath.Join(elem...))
}

// Subdir creates a new Dir representing the subdirectory of this directory
// specified by the chain of path elements. It is responsibility of the caller
// not to pass ".." in elements that would result in a parent directory.
func (d Dir) Subdir(elem ...string) Dir {
	return Dir{Path: d.Join(elem...), rootLen: d.rootLen}
}

// RootRel joins this directory path with the given path elements and
// returns a canonical presentation as relative to the potentially
// non-canonical root under which this directory might have been
// constructed.
func (d Dir) RootRel(elem ...string) string {
	p := d.Join(elem...)
	rel := p[d.rootLen:]
	if rel == "" {
		return "/"
	}
	return rel
}

// A RootTree represents the tree of netprov-relevant directories and
// file paths in the root filesystem of a running system.
type RootTree struct {
	Dir
}

// RootTreeAt creates a RootTree located at the given potentially
// non-canonical rootdir.
func RootTreeAt(rootdir string) RootTree {
	if rootdir == "" {
		rootdir = "/"
	}
	return RootTree{Dir{Path: rootdir, rootLen: rootLen(rootdir)}}
}

func rootLen(rootdir string) int {
	if rootdir == "/" {
		return 0
	}
	return len(rootdir)
}

// Rel produces a presentation of the given path relative to this root tree.
// It proceeds stripping from p the potentially non-canonical root of
// the tree. If p is the root itself it returns "/".  It panics if p
// is not an absolute path or p doesn't belong to the tree.
func (r RootTree) Rel(p string) string {
	if !filepath.IsAbs(p) {
		panic(fmt.Sprintf("supplied path is not absolute %q", p))
	}
	if !strings.HasPrefix(p, r.Path) {
		panic(fmt.Sprintf("supplied path %q is not related to root tree %q", p, r.Path))
	}
	result, err := filepath.Rel(r.Path, p)
	if err != nil {
		panic(err)
	}
	if result == "." {
		return "/"
	}
	return "/" + result
}

// StateDir returns the directory holding the persisted provisioning record.
func (r RootTree) StateDir() Dir {
	return r.Subdir("/var/lib/netprov")
}

// ConfigDir returns the directory holding the daemon configuration.
func (r RootTree) ConfigDir() Dir {
	return r.Subdir("/etc/netprov")
}

// MotdDir returns the runtime message of the day fragments directory
// read by pam_motd.
func (r RootTree) MotdDir() Dir {
	return r.Subdir("/run/motd.d")
}

// StateDB returns the path of the provisioning record database.
func (r RootTree) StateDB() string {
	return r.StateDir().Join("state.db")
}

// ConfigFile returns the path of the daemon configuration file.
func (r RootTree) ConfigFile() string {
	return r.ConfigDir().Join("netprov.yaml")
}

// Root is the global RootTree of netprov-relevant directories.
// It can be relocated for tests with SetRootDir.
var Root RootTree

// SetRootDir relocates Root under rootdir, "" means the canonical "/".
func SetRootDir(rootdir string) {
	Root = RootTreeAt(rootdir)
}

func init() {
	SetRootDir(os.Getenv("NETPROV_ROOT"))
}
