package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docdelta/internal/config"
	ferrors "git.home.luguber.info/inful/docdelta/internal/foundation/errors"
)

type published struct {
	subject string
	data    []byte
}

type fakeStream struct {
	msgs   []published
	failOn string
}

func (f *fakeStream) Publish(_ context.Context, subject string, data []byte, _ ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if subject == f.failOn {
		return nil, errors.New("no responders")
	}
	f.msgs = append(f.msgs, published{subject: subject, data: data})
	return &jetstream.PubAck{Stream: "TEST", Sequence: uint64(len(f.msgs))}, nil
}

func TestPublishOneMessagePerVersion(t *testing.T) {
	fake := &fakeStream{}
	p := &NATSPublisher{js: fake, subject: "docdelta.plans", logger: discardLogger()}

	err := p.Publish(t.Context(), []VersionPlan{
		{BuildID: "b1", Version: "v1.0", Incremental: true, Counts: map[string]int{"updated": 1}},
		{BuildID: "b1", Version: "latest", Reason: "config hash changed"},
	})
	require.NoError(t, err)
	require.Len(t, fake.msgs, 2)

	assert.Equal(t, "docdelta.plans.v1_0", fake.msgs[0].subject)
	assert.Equal(t, "docdelta.plans.latest", fake.msgs[1].subject)

	var got VersionPlan
	require.NoError(t, json.Unmarshal(fake.msgs[1].data, &got))
	assert.Equal(t, "config hash changed", got.Reason)
	assert.False(t, got.Incremental)
}

func TestPublishFailureIsNotifyError(t *testing.T) {
	fake := &fakeStream{failOn: "docdelta.plans.v2"}
	p := &NATSPublisher{js: fake, subject: "docdelta.plans", logger: discardLogger()}

	err := p.Publish(t.Context(), []VersionPlan{{Version: "v1"}, {Version: "v2"}, {Version: "v3"}})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotify))
	assert.Len(t, fake.msgs, 1)
}

func TestSubjectToken(t *testing.T) {
	assert.Equal(t, "v1_2_3", subjectToken("v1.2.3"))
	assert.Equal(t, "a_b_c", subjectToken("a*b>c"))
	assert.Equal(t, "_", subjectToken(""))
}

func TestNewNATSPublisherRequiresURL(t *testing.T) {
	_, err := NewNATSPublisher(t.Context(), config.NotifyConfig{}, nil)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	require.NoError(t, p.Publish(t.Context(), []VersionPlan{{Version: "v1"}}))
	require.NoError(t, p.Close())
}
