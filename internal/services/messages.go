package services

import (
	"context"

	"portfolio-hub/internal/models"
	"portfolio-hub/internal/remote"

	"github.com/google/uuid"
)

// Contact messages

func (s *DataService) GetMessages(ctx context.Context) []models.Message {
	return s.messages.get(ctx)
}

func (s *DataService) FetchMessages(ctx context.Context) []models.Message {
	return s.messages.fetch(ctx, newestQuery, nil)
}

func (s *DataService) AddMessage(ctx context.Context, m models.Message) Result[models.Message] {
	if m.Replies == nil {
		m.Replies = []models.Reply{}
	}
	return s.messages.add(ctx, m)
}

func (s *DataService) MarkMessageRead(ctx context.Context, id string) (Result[models.Message], error) {
	return s.messages.update(ctx, id, map[string]any{"read": true})
}

// ReplyToMessage appends an admin reply and marks the message read
func (s *DataService) ReplyToMessage(ctx context.Context, id, content string) (Result[models.Message], error) {
	msg, ok := s.messages.lookup(ctx, id)
	if !ok {
		return Result[models.Message]{}, ErrNotFound
	}
	replies := append(msg.Replies, models.Reply{
		ID:      uuid.NewString(),
		Content: content,
		Date:    s.now().UTC(),
	})
	return s.messages.update(ctx, id, map[string]any{"replies": replies, "read": true})
}

func (s *DataService) DeleteMessage(ctx context.Context, id string) (Result[models.Message], error) {
	return s.messages.remove(ctx, id)
}

// Project chat

// GetProjectMessages returns the cached chat of one project, oldest first
func (s *DataService) GetProjectMessages(ctx context.Context, projectID string) []models.ProjectMessage {
	return filter(s.chat.get(ctx), func(m models.ProjectMessage) bool { return m.ProjectID == projectID })
}

func (s *DataService) FetchProjectMessages(ctx context.Context, projectID string) []models.ProjectMessage {
	return s.chat.fetch(ctx, remote.Query{
		Filters: []remote.Filter{remote.Eq("project_id", projectID)},
		Order:   []remote.Order{{Column: "created_at"}},
	}, func(m models.ProjectMessage) bool { return m.ProjectID == projectID })
}

func (s *DataService) SendProjectMessage(ctx context.Context, m models.ProjectMessage) Result[models.ProjectMessage] {
	if m.SenderType == "" {
		m.SenderType = "client"
	}
	return s.chat.add(ctx, m)
}

// MarkProjectMessagesRead marks the messages of a project sent by the other
// side as read
func (s *DataService) MarkProjectMessagesRead(ctx context.Context, projectID, reader string) int {
	marked := 0
	for _, m := range s.GetProjectMessages(ctx, projectID) {
		if m.IsRead || m.SenderType == reader {
			continue
		}
		if _, err := s.chat.update(ctx, m.ID, map[string]any{"isRead": true}); err == nil {
			marked++
		}
	}
	return marked
}
