package cerr

import (
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
)

//go:generate go tool stringer -type=Code -output=code_string.go code.go
type Code int

const (
	OK                 = Code(0)
	Canceled           = Code(1)
	Unknown            = Code(2)
	InvalidArgument    = Code(3)
	DeadlineExceeded   = Code(4)
	NotFound           = Code(5)
	AlreadyExists      = Code(6)
	PermissionDenied   = Code(7)
	ResourceExhausted  = Code(8)
	FailedPrecondition = Code(9)
	Aborted            = Code(10)
	OutOfRange         = Code(11)
	Unimplemented      = Code(12)
	Internal           = Code(13)
	Unavailable        = Code(14)
	DataLoss           = Code(15)
	Unauthenticated    = Code(16)
)

type codeInfo struct {
	connect connect.Code
	status  int
	level   slog.Level
}

// Codes at error level are server faults: they capture a stack and are
// logged as errors. The rest are caused by the caller.
var codes = map[Code]codeInfo{
	OK:                 {0, http.StatusOK, slog.LevelInfo},
	Canceled:           {connect.CodeCanceled, 499, slog.LevelInfo},
	Unknown:            {connect.CodeUnknown, http.StatusInternalServerError, slog.LevelError},
	InvalidArgument:    {connect.CodeInvalidArgument, http.StatusBadRequest, slog.LevelInfo},
	DeadlineExceeded:   {connect.CodeDeadlineExceeded, http.StatusGatewayTimeout, slog.LevelInfo},
	NotFound:           {connect.CodeNotFound, http.StatusNotFound, slog.LevelInfo},
	AlreadyExists:      {connect.CodeAlreadyExists, http.StatusConflict, slog.LevelInfo},
	PermissionDenied:   {connect.CodePermissionDenied, http.StatusForbidden, slog.LevelInfo},
	ResourceExhausted:  {connect.CodeResourceExhausted, http.StatusTooManyRequests, slog.LevelError},
	FailedPrecondition: {connect.CodeFailedPrecondition, http.StatusPreconditionFailed, slog.LevelInfo},
	Aborted:            {connect.CodeAborted, http.StatusConflict, slog.LevelInfo},
	OutOfRange:         {connect.CodeOutOfRange, http.StatusBadRequest, slog.LevelInfo},
	Unimplemented:      {connect.CodeUnimplemented, http.StatusNotImplemented, slog.LevelError},
	Internal:           {connect.CodeInternal, http.StatusInternalServerError, slog.LevelError},
	Unavailable:        {connect.CodeUnavailable, http.StatusServiceUnavailable, slog.LevelError},
	DataLoss:           {connect.CodeDataLoss, http.StatusInternalServerError, slog.LevelError},
	Unauthenticated:    {connect.CodeUnauthenticated, http.StatusUnauthorized, slog.LevelInfo},
}

func (c Code) info() codeInfo {
	if i, ok := codes[c]; ok {
		return i
	}
	return codes[Unknown]
}

// ConnectCode returns the matching connect code. Its String form
// ("not_found") is the code written in JSON error bodies.
func (c Code) ConnectCode() connect.Code {
	return c.info().connect
}

func (c Code) HTTPCode() int {
	return c.info().status
}

func (c Code) Level() slog.Level {
	return c.info().level
}
