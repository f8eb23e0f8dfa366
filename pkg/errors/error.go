//  
//  Copyright 2023 PayPal Inc.
//  
//  Licensed to the Apache Software Foundation (ASF) under one or more
//  contributor license agreements.  See the NOTICE file distributed with
//  this work for additional information regarding copyright ownership.
//  The ASF licenses this file to You under the Apache License, Version 2.0
//  (the "License"); you may not use this file except in compliance with
//  the License.  You may obtain a copy of the License at
//  
//     http://www.apache.org/licenses/LICENSE-2.0
//  
//  Unless required by applicable law or agreed to in writing, software
//  distributed under the License is distributed on an "AS IS" BASIS,
//  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//  See the License for the specific language governing permissions and
//  limitations under the License.
//  

package errors

import (
	"fmt"
)

// Bus error numbers. They are stable and are reported by the gateway and
// busctl exit codes.
const (
	ErrnoOK              = uint32(0)
	ErrnoPayloadTooLarge = uint32(1)
	ErrnoNotJoined       = uint32(2)
	ErrnoAlreadyJoined   = uint32(3)
	ErrnoConnLeft        = uint32(4)
	ErrnoSyncTimeout     = uint32(5)
	ErrnoIdOutOfRange    = uint32(6)
	ErrnoQuorumNotMet    = uint32(7)
	ErrnoAuthority       = uint32(8)
	ErrnoCommitOrder     = uint32(9)
	ErrnoMalformed       = uint32(10)
	ErrnoShutdown        = uint32(11)
)

type Error struct {
	what  string
	errno uint32
}

func NewError(what string, errno uint32) *Error {
	return &Error{what: what, errno: errno}
}

func (e *Error) Error() string {
	return fmt.Sprintf("error: %s (%d) ", e.what, e.errno)
}

func (e *Error) ErrNo() uint32 {
	return e.errno
}

// Is matches any *Error carrying the same errno, so wrapped errors can be
// tested with errors.Is against the package sentinels.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return t.errno == e.errno
	}
	return false
}

// ErrNo extracts the errno of err, if err is (or wraps) an *Error.
func ErrNo(err error) (errno uint32, ok bool) {
	for err != nil {
		if e, yes := err.(*Error); yes {
			return e.errno, true
		}
		u, yes := err.(interface{ Unwrap() error })
		if !yes {
			break
		}
		err = u.Unwrap()
	}
	return
}
