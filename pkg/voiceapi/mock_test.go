package voiceapi_test

import (
	"context"
	"testing"

	"github.com/teslashibe/go-voiceauth/pkg/capture"
	"github.com/teslashibe/go-voiceauth/pkg/voiceapi"
)

func TestMockService(t *testing.T) {
	mock := voiceapi.NewMock()
	ctx := context.Background()

	t.Run("defaults succeed", func(t *testing.T) {
		if res := mock.CheckHealth(ctx); !res.Success {
			t.Errorf("expected healthy, got %+v", res)
		}
		if res := mock.GetChallengePhrase(ctx); !res.Success || res.Data.Phrase == "" {
			t.Errorf("expected phrase, got %+v", res)
		}
		if res := mock.Verify(ctx, "u1", "p", nil); !res.Success || res.Data.UserID != "u1" {
			t.Errorf("unexpected verify %+v", res)
		}
	})

	t.Run("calls are tracked", func(t *testing.T) {
		if mock.CallCount("Verify") != 1 {
			t.Errorf("expected 1 Verify call, got %d", mock.CallCount("Verify"))
		}
		calls := mock.Calls()
		if len(calls) != 3 || calls[2].UserID != "u1" {
			t.Errorf("unexpected calls %+v", calls)
		}
	})

	t.Run("funcs override", func(t *testing.T) {
		mock.Reset()
		mock.EnrollFunc = func(context.Context, string, string, *capture.Artifact) voiceapi.Result[voiceapi.EnrollmentReceipt] {
			return voiceapi.Fail[voiceapi.EnrollmentReceipt]("user exists")
		}
		if res := mock.Enroll(ctx, "u1", "p", nil); res.Error != "user exists" {
			t.Errorf("expected override, got %+v", res)
		}
	})
}
