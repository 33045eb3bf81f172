// Copyright 2023 ColStore Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package moerr

import (
	"fmt"
)

const (
	Ok uint16 = 0

	// Group 1: internal errors
	ErrInternal uint16 = 20101

	// Group 3: invalid input
	ErrInvalidInput     uint16 = 20301
	ErrMalformedAddress uint16 = 20310
	ErrInvalidTimestamp uint16 = 20311
	ErrMalformedValue   uint16 = 20312

	// Group 4: unexpected state and io errors
	ErrInvalidState  uint16 = 20400
	ErrFileNotFound  uint16 = 20405
	ErrIOFailed      uint16 = 20406
	ErrLockFailed    uint16 = 20411
	ErrUnlockFailed  uint16 = 20412
	ErrPartialUpload uint16 = 20413
)

type errorInfo struct {
	code   uint16
	format string
}

var errorInfos = map[uint16]errorInfo{
	ErrInternal:         {ErrInternal, "internal error: %s"},
	ErrInvalidInput:     {ErrInvalidInput, "invalid input: %s"},
	ErrMalformedAddress: {ErrMalformedAddress, "malformed tuple address: %s"},
	ErrInvalidTimestamp: {ErrInvalidTimestamp, "invalid timestamp: %s"},
	ErrMalformedValue:   {ErrMalformedValue, "invalid row value: %s"},
	ErrInvalidState:     {ErrInvalidState, "invalid state: %s"},
	ErrFileNotFound:     {ErrFileNotFound, "file %s is not found"},
	ErrIOFailed:         {ErrIOFailed, "io error on %s: %v"},
	ErrLockFailed:       {ErrLockFailed, "failed to acquire lock %s"},
	ErrUnlockFailed:     {ErrUnlockFailed, "failed to release lock %s"},
	ErrPartialUpload:    {ErrPartialUpload, "partial trash upload at %s"},
}

// Error is the coded error used across the store. Codes are stable and
// matched with IsMoErrCode, never by message.
type Error struct {
	code    uint16
	message string
}

func newError(code uint16, args ...interface{}) *Error {
	info, ok := errorInfos[code]
	if !ok {
		panic(fmt.Errorf("missing error info for code %d", code))
	}
	return &Error{
		code:    code,
		message: fmt.Sprintf(info.format, args...),
	}
}

func (e *Error) Error() string {
	return e.message
}

func (e *Error) ErrorCode() uint16 {
	return e.code
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.code == e.code
}

// IsMoErrCode reports whether err is an *Error carrying the given code.
func IsMoErrCode(err error, code uint16) bool {
	if err == nil {
		return code == Ok
	}
	me, ok := err.(*Error)
	return ok && me.code == code
}

func NewInternalError(format string, args ...interface{}) *Error {
	return newError(ErrInternal, fmt.Sprintf(format, args...))
}

func NewInvalidInput(format string, args ...interface{}) *Error {
	return newError(ErrInvalidInput, fmt.Sprintf(format, args...))
}

func NewMalformedAddress(address string) *Error {
	return newError(ErrMalformedAddress, address)
}

func NewInvalidTimestamp(ts string) *Error {
	return newError(ErrInvalidTimestamp, ts)
}

func NewMalformedValue(value string) *Error {
	return newError(ErrMalformedValue, value)
}

func NewInvalidState(format string, args ...interface{}) *Error {
	return newError(ErrInvalidState, fmt.Sprintf(format, args...))
}

func NewFileNotFound(path string) *Error {
	return newError(ErrFileNotFound, path)
}

func NewIOFailed(path string, cause error) *Error {
	return newError(ErrIOFailed, path, cause)
}

func NewLockFailed(resource string) *Error {
	return newError(ErrLockFailed, resource)
}

func NewUnlockFailed(resource string) *Error {
	return newError(ErrUnlockFailed, resource)
}

func NewPartialUpload(path string) *Error {
	return newError(ErrPartialUpload, path)
}
