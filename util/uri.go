package util

import (
	"fmt"
	"strings"
)

type ParsedUri struct {
	Did        string
	Collection string
	Rkey       string
}

// ParseAtUri splits a record AT-URI (at://did/collection/rkey). Handles in the
// authority position are rejected; the read path only stores DID-based URIs.
func ParseAtUri(uri string) (*ParsedUri, error) {
	if !strings.HasPrefix(uri, "at://") {
		return nil, fmt.Errorf("AT uris must be prefixed with 'at://'")
	}

	trimmed := strings.TrimPrefix(uri, "at://")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 3 {
		return nil, fmt.Errorf("AT uris must have three parts: did, collection, tid")
	}
	if !strings.HasPrefix(parts[0], "did:") {
		return nil, fmt.Errorf("AT uri authority is not a DID: %q", parts[0])
	}
	if parts[1] == "" || parts[2] == "" {
		return nil, fmt.Errorf("AT uri has empty collection or record key: %q", uri)
	}

	return &ParsedUri{
		Did:        parts[0],
		Collection: parts[1],
		Rkey:       parts[2],
	}, nil
}

// DidFromUri returns the authority of a record URI, or "" if it doesn't parse.
func DidFromUri(uri string) string {
	pu, err := ParseAtUri(uri)
	if err != nil {
		return ""
	}
	return pu.Did
}

func RecordUri(did, collection, rkey string) string {
	return "at://" + did + "/" + collection + "/" + rkey
}
