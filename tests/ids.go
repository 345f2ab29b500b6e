package testutil

import (
	"testing"

	"github.com/google/uuid"
)

func newID(t *testing.T) string {
	t.Helper()
	id, err := uuid.NewRandom()
	if err != nil {
		t.Fatalf("newID() failed: %v", err)
	}
	return id.String()
}
