package lakehouse

import (
	"context"
	"testing"

	"github.com/rivermark/ironlake/internal/op"
)

func TestDispatch_UnknownOperation(t *testing.T) {
	eng, _, _, _ := newTestEngine()
	_, err := eng.Dispatch(context.Background(), &op.Envelope{
		RequestID: "r1", Operation: op.Name("BOGUS"), TenantID: "t1", Namespace: "default", Table: "issues",
	})
	if err == nil {
		t.Fatal("expected an error for an unrecognized operation")
	}
	var unknown *UnknownOperationError
	if !asUnknownOperationError(err, &unknown) {
		t.Fatalf("error = %v, want *UnknownOperationError", err)
	}
}

func asUnknownOperationError(err error, target **UnknownOperationError) bool {
	e, ok := err.(*UnknownOperationError)
	if !ok {
		return false
	}
	*target = e
	return true
}

func TestNew_DefaultsLoggerAndPresignTTL(t *testing.T) {
	cat := newFakeCatalog()
	data := newFakeDataEngine()
	eng := New(cat, data, nil, nil, 0, nil)
	if eng.Log == nil {
		t.Error("expected a default logger")
	}
	if eng.PresignTTL <= 0 {
		t.Error("expected a default presign TTL")
	}
}
