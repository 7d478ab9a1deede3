package presence

import (
	"testing"
	"time"

	"github.com/aureeture/mentor_sessions/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	id := uuid.MustParse("8f14e45f-ceea-467f-a0e6-3c2b1a9d7e11")
	assert.Equal(t, "sessions:presence:8f14e45f-ceea-467f-a0e6-3c2b1a9d7e11", key(id))
}

func TestField(t *testing.T) {
	assert.Equal(t, fieldMentor, field(model.RolePublisher))
	assert.Equal(t, fieldMentee, field(model.RoleSubscriber))
}

func TestParsePresence(t *testing.T) {
	joined := time.Date(2025, 3, 10, 9, 46, 12, 0, time.UTC)

	t.Run("empty hash", func(t *testing.T) {
		p, err := parsePresence(map[string]string{})
		require.NoError(t, err)
		assert.Nil(t, p.MentorJoinedAt)
		assert.Nil(t, p.MenteeJoinedAt)
	})

	t.Run("mentor only", func(t *testing.T) {
		p, err := parsePresence(map[string]string{fieldMentor: joined.Format(time.RFC3339Nano)})
		require.NoError(t, err)
		require.NotNil(t, p.MentorJoinedAt)
		assert.True(t, joined.Equal(*p.MentorJoinedAt))
		assert.Nil(t, p.MenteeJoinedAt)
	})

	t.Run("broken value", func(t *testing.T) {
		_, err := parsePresence(map[string]string{fieldMentee: "yesterday"})
		assert.Error(t, err)
	})
}
