package http

import "ordwal/pkg/wal"

type Status string

const (
	// StatusOK is used for health-check responses.
	StatusOK Status = "OK"

	// StatusSuccess indicates an operation completed successfully.
	StatusSuccess Status = "success"

	// StatusError indicates an operation failed.
	StatusError Status = "error"
)

// Response represents the standard API response format.
type Response struct {
	Status  Status `json:"status,omitempty"`
	Value   string `json:"value,omitempty"`
	Version uint64 `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Item is one entry of an iteration response.
type Item struct {
	Key       string `json:"key"`
	Value     string `json:"value,omitempty"`
	Version   uint64 `json:"version"`
	Tombstone bool   `json:"tombstone,omitempty"`
}

// ItemsResponse is returned by the iteration endpoint.
type ItemsResponse struct {
	Status  Status `json:"status"`
	Version uint64 `json:"version"`
	Items   []Item `json:"items"`
}

// StatsResponse describes the served log.
type StatsResponse struct {
	Status         Status `json:"status"`
	Path           string `json:"path,omitempty"`
	Entries        int    `json:"entries"`
	Capacity       uint32 `json:"capacity"`
	Remaining      uint32 `json:"remaining"`
	Committed      uint32 `json:"committed"`
	MinimumVersion uint64 `json:"minimum_version"`
	MaximumVersion uint64 `json:"maximum_version"`
	Clock          uint64 `json:"clock"`
}

func NewOKResponse() Response {
	return Response{Status: StatusOK}
}

func NewSuccessResponse(version uint64) Response {
	return Response{Status: StatusSuccess, Version: version}
}

func NewValueResponse(e wal.Entry) Response {
	return Response{Status: StatusSuccess, Value: string(e.Value), Version: e.Version}
}

func NewErrorResponse(err string) Response {
	return Response{Status: StatusError, Error: err}
}

func newItem(e wal.Entry) Item {
	return Item{Key: string(e.Key), Value: string(e.Value), Version: e.Version, Tombstone: e.Tombstone}
}
