package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evolvekit/skillevo/pkg/config"
	"github.com/evolvekit/skillevo/pkg/proposal"
)

func TestNewTelegramSinkWithoutTokenIsNop(t *testing.T) {
	sink := NewTelegramSink(config.Telegram{})
	_, ok := sink.(NopSink)
	assert.True(t, ok)
	assert.NoError(t, sink.Send(context.Background(), "ignored"))
}

func TestTelegramSinkSend(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sink := &TelegramSink{
		token:  "token123",
		chatID: "-42",
		client: server.Client(),
		apiURL: server.URL,
	}

	require.NoError(t, sink.Send(context.Background(), "hello"))
	assert.Equal(t, "/bottoken123/sendMessage", gotPath)
	assert.Equal(t, "-42", gotBody["chat_id"])
	assert.Equal(t, "hello", gotBody["text"])
}

func TestTelegramSinkRetriesThenFails(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	sink := &TelegramSink{
		token:  "t",
		chatID: "c",
		client: server.Client(),
		apiURL: server.URL,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := sink.Send(ctx, "hello")
	assert.Error(t, err)
	assert.Equal(t, 3, attempts)
}

func TestFormatters(t *testing.T) {
	proposals := []*proposal.Proposal{
		{SkillID: "alpha", Title: "Review unused skill alpha"},
		{SkillID: "beta", Title: "Fix beta error patterns"},
	}

	patch := PatchApplied(proposals, "2024/03/01 10:00")
	assert.Contains(t, patch, "Applied automatically")
	assert.Contains(t, patch, "• alpha: Review unused skill alpha")
	assert.Contains(t, patch, "2024/03/01 10:00")

	minor := MinorPending(proposals, "2024/03/01 10:00")
	assert.Contains(t, minor, "auto-apply in 24 hours")
	assert.Contains(t, minor, `Reply "cancel"`)

	major := MajorPending(proposals, "2024/03/01 10:00")
	assert.Contains(t, major, "require your confirmation")
	assert.Contains(t, major, `Reply "confirm"`)
}
