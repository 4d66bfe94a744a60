// Copyright 2016 The Netstack Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package seqbuf

import "errors"

// ErrNoSpace is returned by Write when seq lies more than the buffer's
// capacity beyond its base, per spec.md §4.1.
var ErrNoSpace = errors.New("seqbuf: no space")
