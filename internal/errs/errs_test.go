package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"pgregory.net/rapid"
)

var allCodes = []Code{
	InvalidArgument,
	NotFound,
	Forbidden,
	InvalidParent,
	InvalidFolder,
	CycleDetected,
	DuplicateName,
	SelfShare,
	NotOwner,
	UnknownReceiver,
	DuplicateGrant,
	Unavailable,
	Internal,
}

func testCodeOf_RoundtripForTypedErrors(t *rapid.T) {
	code := rapid.SampledFrom(allCodes).Draw(t, "code")
	message := rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "message")

	err := New(code, message)
	if got := CodeOf(err); got != code {
		t.Fatalf("CodeOf(New) mismatch: got=%q want=%q", got, code)
	}
	if got := MessageOf(err); got != message {
		t.Fatalf("MessageOf(New) mismatch: got=%q want=%q", got, message)
	}
	if !Is(err, code) {
		t.Fatalf("Is(err, %q) = false, want true", code)
	}
}

func TestCodeOf_RoundtripForTypedErrors(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCodeOf_RoundtripForTypedErrors)
}

func testCodeOfAndMessageOf_WrappedTypedError(t *rapid.T) {
	code := rapid.SampledFrom(allCodes).Draw(t, "code")
	message := rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "message")
	cause := errors.New(rapid.StringMatching(`[a-zA-Z0-9 _:\-]{1,80}`).Draw(t, "cause"))

	err := Wrap(code, message, cause)
	wrapped := fmt.Errorf("outer: %w", err)

	if got := CodeOf(wrapped); got != code {
		t.Fatalf("CodeOf(wrapped) mismatch: got=%q want=%q", got, code)
	}
	if got := MessageOf(wrapped); got != message {
		t.Fatalf("MessageOf(wrapped) mismatch: got=%q want=%q", got, message)
	}
	if !errors.Is(wrapped, err) {
		t.Fatalf("errors.Is lost the wrapped error")
	}
}

func TestCodeOfAndMessageOf_WrappedTypedError(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testCodeOfAndMessageOf_WrappedTypedError)
}

func TestCodeOf_UntypedErrorDefaultsToInternal(t *testing.T) {
	t.Parallel()

	err := errors.New("sqlite: disk I/O error at /data/u1.db")
	if got := CodeOf(err); got != Internal {
		t.Fatalf("CodeOf(untyped) = %q, want %q", got, Internal)
	}
	if got := MessageOf(err); got != "internal error" {
		t.Fatalf("MessageOf(untyped) = %q, want redacted message", got)
	}
}

func TestHTTPStatus_TaxonomyMapping(t *testing.T) {
	t.Parallel()

	cases := map[Code]int{
		InvalidArgument: http.StatusBadRequest,
		InvalidParent:   http.StatusBadRequest,
		InvalidFolder:   http.StatusBadRequest,
		NotFound:        http.StatusNotFound,
		Forbidden:       http.StatusForbidden,
		NotOwner:        http.StatusForbidden,
		CycleDetected:   http.StatusConflict,
		DuplicateName:   http.StatusConflict,
		SelfShare:       http.StatusConflict,
		DuplicateGrant:  http.StatusConflict,
		UnknownReceiver: http.StatusUnprocessableEntity,
		Unavailable:     http.StatusServiceUnavailable,
		Internal:        http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Errorf("HTTPStatus(%q) = %d, want %d", code, got, want)
		}
	}
}
