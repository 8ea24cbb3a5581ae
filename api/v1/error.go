package api_v1

import (
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	status "google.golang.org/grpc/status"
)

func withMessage(code codes.Code, msg string) *status.Status {
	st := status.New(code, msg)
	d := &errdetails.LocalizedMessage{
		Locale:  "en-US",
		Message: msg,
	}
	std, err := st.WithDetails(d)
	if err != nil {
		return st
	}
	return std
}

type RunNotFoundError struct {
	RunId string
}

func (e RunNotFoundError) GRPCStatus() *status.Status {
	return withMessage(codes.NotFound, fmt.Sprintf("run %s not found", e.RunId))
}

func (e RunNotFoundError) Error() string {
	return e.GRPCStatus().Err().Error()
}

type SubjectNotFoundError struct {
	SubjectId string
}

func (e SubjectNotFoundError) GRPCStatus() *status.Status {
	return withMessage(codes.NotFound, fmt.Sprintf("subject %s not found", e.SubjectId))
}

func (e SubjectNotFoundError) Error() string {
	return e.GRPCStatus().Err().Error()
}

// RunBusyError is returned when another execution already drives the run.
type RunBusyError struct {
	RunId string
}

func (e RunBusyError) GRPCStatus() *status.Status {
	return withMessage(codes.Aborted, fmt.Sprintf("run %s is already being executed", e.RunId))
}

func (e RunBusyError) Error() string {
	return e.GRPCStatus().Err().Error()
}

type InvalidRunStateError struct {
	RunId  string
	State  string
	Action string
}

func (e InvalidRunStateError) GRPCStatus() *status.Status {
	return withMessage(codes.FailedPrecondition, fmt.Sprintf("can not %s run %s in state %s", e.Action, e.RunId, e.State))
}

func (e InvalidRunStateError) Error() string {
	return e.GRPCStatus().Err().Error()
}

type ValidationError struct {
	Message string
}

func (e ValidationError) GRPCStatus() *status.Status {
	return withMessage(codes.InvalidArgument, e.Message)
}

func (e ValidationError) Error() string {
	return e.GRPCStatus().Err().Error()
}

type StorageLayerError struct{}

func (e StorageLayerError) GRPCStatus() *status.Status {
	return withMessage(codes.Internal, "error in underline storage layer")
}

func (e StorageLayerError) Error() string {
	return e.GRPCStatus().Err().Error()
}
