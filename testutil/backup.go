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

package testutil

import (
	"reflect"
)

// Backup takes pointers to variables and returns a function that
// restores their current values. Used by Mock* helpers in
// export_test.go files.
func Backup(ptrs ...interface{}) (restore func()) {
	saved := make([]reflect.Value, len(ptrs))
	for i, p := range ptrs {
		v := reflect.ValueOf(p)
		if v.Kind() != reflect.Ptr {
			panic("Backup can only be given pointers")
		}
		saved[i] = reflect.ValueOf(v.Elem().Interface())
	}
	return func() {
		for i, p := range ptrs {
			v := reflect.ValueOf(p).Elem()
			if !saved[i].IsValid() {
				// was a nil interface or similar
				v.Set(reflect.Zero(v.Type()))
				continue
			}
			v.Set(saved[i])
		}
	}
}
