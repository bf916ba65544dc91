package assistant

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/config"
	"storefront/internal/domain"
)

type fakeGen struct {
	reply       string
	err         error
	instruction string
	message     string
	block       bool
}

func (f *fakeGen) Generate(ctx context.Context, instruction, message string) (string, error) {
	f.instruction, f.message = instruction, message
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.reply, f.err
}

func settings() domain.SystemSettings {
	return domain.DefaultSettings(time.Now())
}

func TestReplyUsesStorePersona(t *testing.T) {
	gen := &fakeGen{reply: "চাল ৳৮০ কেজি"}
	a := New(gen, time.Second)

	out, ok := a.Reply(context.Background(), settings(), domain.LangBengali, "চালের দাম কত?")
	require.True(t, ok)
	assert.Equal(t, "চাল ৳৮০ কেজি", out)
	assert.Equal(t, "চালের দাম কত?", gen.message)
	assert.Contains(t, gen.instruction, domain.DefaultStoreName)
	assert.Contains(t, gen.instruction, "Respond in Bengali")
	assert.Contains(t, gen.instruction, "groceries")
}

func TestReplyFallsBackToApology(t *testing.T) {
	a := New(&fakeGen{err: errors.New("quota")}, time.Second)
	out, ok := a.Reply(context.Background(), settings(), domain.LangEnglish, "hi")
	require.True(t, ok)
	assert.Equal(t, "Sorry, I'm having trouble responding right now.", out)

	out, _ = New(nil, 0).Reply(context.Background(), settings(), domain.LangBengali, "hi")
	assert.Equal(t, Apology(domain.LangBengali), out)
}

func TestReplyTimesOut(t *testing.T) {
	a := New(&fakeGen{block: true}, 10*time.Millisecond)
	out, ok := a.Reply(context.Background(), settings(), domain.LangEnglish, "hi")
	require.True(t, ok)
	assert.Equal(t, Apology(domain.LangEnglish), out)
}

func TestEmptyCompletion(t *testing.T) {
	out, _ := New(&fakeGen{reply: "  "}, 0).Reply(context.Background(), settings(), domain.LangEnglish, "hi")
	assert.Equal(t, "...", out)
}

func TestDisabledAssistantStaysSilent(t *testing.T) {
	s := settings()
	s.AIAssistantEnabled = false
	gen := &fakeGen{reply: "x"}
	out, ok := New(gen, 0).Reply(context.Background(), s, domain.LangEnglish, "hi")
	assert.False(t, ok)
	assert.Empty(t, out)
	assert.Empty(t, gen.message, "generator not called")
}

func TestFromConfigWithoutKeyApologizes(t *testing.T) {
	a := FromConfig(context.Background(), config.AssistantConfig{Provider: "gemini"}, time.Second)
	out, ok := a.Reply(context.Background(), settings(), domain.LangEnglish, "hi")
	require.True(t, ok)
	assert.Equal(t, Apology(domain.LangEnglish), out)

	_, err := NewGeminiGenerator(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNoCredential)
}
