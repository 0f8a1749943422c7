package objstore

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// ObjectCreated identifies the artifact a storage event points at. It is
// how stage two learns which CSV just landed.
type ObjectCreated struct {
	Bucket string
	Key    string
}

// ParseObjectCreated decodes an S3 event notification document and returns
// the first object-created record. Object keys arrive URL-encoded in the
// event payload and are decoded here so callers always see the real key.
func ParseObjectCreated(doc []byte) (ObjectCreated, error) {
	var ev struct {
		Records []struct {
			S3 struct {
				Bucket struct {
					Name string `json:"name"`
				} `json:"bucket"`
				Object struct {
					Key string `json:"key"`
				} `json:"object"`
			} `json:"s3"`
		} `json:"Records"`
	}
	if err := json.Unmarshal(doc, &ev); err != nil {
		return ObjectCreated{}, fmt.Errorf("objstore: decode event: %w", err)
	}
	if len(ev.Records) == 0 {
		return ObjectCreated{}, fmt.Errorf("objstore: event carries no records")
	}
	rec := ev.Records[0]
	if rec.S3.Bucket.Name == "" || rec.S3.Object.Key == "" {
		return ObjectCreated{}, fmt.Errorf("objstore: event record missing bucket or key")
	}
	key, err := url.QueryUnescape(rec.S3.Object.Key)
	if err != nil {
		return ObjectCreated{}, fmt.Errorf("objstore: decode object key: %w", err)
	}
	return ObjectCreated{Bucket: rec.S3.Bucket.Name, Key: key}, nil
}
