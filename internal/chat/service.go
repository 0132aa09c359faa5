package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"conversation-service/internal/models"
	"conversation-service/internal/repositories"
)

// EventPublisher receives notifications about completed writes.
type EventPublisher interface {
	MessageSent(ctx context.Context, msg models.Message)
	ConversationCreated(ctx context.Context, conv models.Conversation)
}

// SendInput addresses a message either to a conversation or to a recipient.
// When both are set the conversation wins.
type SendInput struct {
	ConversationID string
	RecipientID    string
	SenderID       string
	Content        string
}

// Service implements the conversation operations.
type Service struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserStore
	guard         *Guard
	events        EventPublisher
	emptyWindow   time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// NewService builds a Service. emptyWindow controls how long a conversation
// without messages stays listed after it was last opened.
func NewService(conversations repositories.ConversationRepository, messages repositories.MessageRepository, users repositories.UserStore, events EventPublisher, emptyWindow time.Duration, logger *zap.Logger) *Service {
	if events == nil {
		events = noopEvents{}
	}
	return &Service{
		conversations: conversations,
		messages:      messages,
		users:         users,
		guard:         NewGuard(conversations, logger),
		events:        events,
		emptyWindow:   emptyWindow,
		now:           time.Now,
		logger:        logger,
	}
}

// Guard returns the membership guard used by the service.
func (s *Service) Guard() *Guard {
	return s.guard
}

// StartConversation explicitly creates the conversation between userID and
// otherID. It fails with ErrConversationExists when the pair already has one.
func (s *Service) StartConversation(ctx context.Context, userID, otherID string) (models.ConversationView, error) {
	if err := s.checkCounterpart(ctx, userID, otherID); err != nil {
		return models.ConversationView{}, err
	}

	conv, err := s.conversations.Create(ctx, userID, otherID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationExists) {
			return models.ConversationView{}, ErrConversationExists
		}
		return models.ConversationView{}, internal("create conversation", err)
	}
	s.events.ConversationCreated(ctx, conv)

	views, err := s.views(ctx, []models.ConversationSummary{{Conversation: conv}})
	if err != nil {
		return models.ConversationView{}, err
	}
	return views[0], nil
}

// SendMessage persists a message and links it to its conversation. The
// message is returned only after both writes committed.
func (s *Service) SendMessage(ctx context.Context, in SendInput) (models.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return models.Message{}, ErrEmptyContent
	}
	if in.SenderID == "" {
		return models.Message{}, ErrUnauthorized
	}

	var (
		conv models.Conversation
		err  error
	)
	switch {
	case in.ConversationID != "":
		conv, err = s.conversations.Get(ctx, in.ConversationID)
		if err != nil {
			if errors.Is(err, repositories.ErrConversationNotFound) {
				return models.Message{}, ErrConversationNotFound
			}
			return models.Message{}, internal("load conversation", err)
		}
		if !conv.HasMember(in.SenderID) {
			return models.Message{}, ErrNotMember
		}
	case in.RecipientID != "":
		conv, err = s.conversationFor(ctx, in.SenderID, in.RecipientID)
		if err != nil {
			return models.Message{}, err
		}
	default:
		return models.Message{}, ErrMissingTarget
	}

	msg, err := s.messages.Append(ctx, conv.ID, in.SenderID, content)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return models.Message{}, ErrConversationNotFound
		}
		return models.Message{}, internal("append message", err)
	}
	s.events.MessageSent(ctx, msg)
	return msg, nil
}

// conversationFor returns the pair's conversation, creating it on first use.
func (s *Service) conversationFor(ctx context.Context, senderID, recipientID string) (models.Conversation, error) {
	if err := s.checkCounterpart(ctx, senderID, recipientID); err != nil {
		return models.Conversation{}, err
	}

	conv, err := s.conversations.FindByPair(ctx, senderID, recipientID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, repositories.ErrConversationNotFound) {
		return models.Conversation{}, internal("find conversation", err)
	}

	conv, err = s.conversations.Create(ctx, senderID, recipientID)
	switch {
	case err == nil:
		s.events.ConversationCreated(ctx, conv)
		return conv, nil
	case errors.Is(err, repositories.ErrConversationExists):
		// Lost the race against a concurrent creator; use theirs.
		conv, err = s.conversations.FindByPair(ctx, senderID, recipientID)
		if err != nil {
			return models.Conversation{}, internal("find conversation", err)
		}
		return conv, nil
	default:
		return models.Conversation{}, internal("create conversation", err)
	}
}

func (s *Service) checkCounterpart(ctx context.Context, userID, otherID string) error {
	if userID == otherID {
		return ErrSelfConversation
	}
	exists, err := s.users.Exists(ctx, otherID)
	if err != nil {
		return internal("check user", err)
	}
	if !exists {
		return ErrUserNotFound
	}
	return nil
}

// ListConversations returns the conversations of userID with resolved members.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]models.ConversationView, error) {
	summaries, err := s.conversations.ListForUser(ctx, userID, s.now().Add(-s.emptyWindow))
	if err != nil {
		return nil, internal("list conversations", err)
	}
	return s.views(ctx, summaries)
}

// ConversationWith returns the conversation between userID and otherID, or nil
// when there is none. Opening it refreshes its opened-at time best-effort.
func (s *Service) ConversationWith(ctx context.Context, userID, otherID string) (*models.ConversationView, error) {
	if userID == otherID {
		return nil, nil
	}
	conv, err := s.conversations.FindByPair(ctx, userID, otherID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return nil, nil
		}
		return nil, internal("find conversation", err)
	}
	s.touch(ctx, conv.ID)

	views, err := s.views(ctx, []models.ConversationSummary{{Conversation: conv, MessageCount: len(conv.MessageIDs)}})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// Messages returns the ordered history of a conversation for one of its members.
func (s *Service) Messages(ctx context.Context, conversationID, userID string) ([]models.MessageView, error) {
	if !s.guard.IsMember(ctx, conversationID, userID) {
		return nil, ErrNotMember
	}

	msgs, err := s.messages.ListForConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, internal("list messages", err)
	}
	s.touch(ctx, conversationID)
	return s.messageViews(ctx, msgs)
}

// MessagesWith returns the history between userID and otherID; an empty list
// when they never talked.
func (s *Service) MessagesWith(ctx context.Context, userID, otherID string) ([]models.MessageView, error) {
	if userID == otherID {
		return nil, ErrSelfConversation
	}
	conv, err := s.conversations.FindByPair(ctx, userID, otherID)
	if err != nil {
		if errors.Is(err, repositories.ErrConversationNotFound) {
			return []models.MessageView{}, nil
		}
		return nil, internal("find conversation", err)
	}
	return s.Messages(ctx, conv.ID, userID)
}

func (s *Service) touch(ctx context.Context, conversationID string) {
	if err := s.conversations.Touch(ctx, conversationID); err != nil {
		s.logger.Warn("conversation touch failed", zap.String("conversation_id", conversationID), zap.Error(err))
	}
}

func (s *Service) profiles(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return map[string]models.Profile{}, nil
	}

	found, err := s.users.GetProfiles(ctx, unique)
	if err != nil {
		return nil, internal("load profiles", err)
	}
	byID := make(map[string]models.Profile, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	return byID, nil
}

func profileOrID(byID map[string]models.Profile, id string) models.Profile {
	if p, ok := byID[id]; ok {
		return p
	}
	return models.Profile{ID: id}
}

func (s *Service) views(ctx context.Context, summaries []models.ConversationSummary) ([]models.ConversationView, error) {
	ids := make([]string, 0, len(summaries)*2)
	for _, sum := range summaries {
		ids = append(ids, sum.User1ID, sum.User2ID)
	}
	byID, err := s.profiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.ConversationView, 0, len(summaries))
	for _, sum := range summaries {
		messages := []string(sum.MessageIDs)
		if messages == nil {
			messages = []string{}
		}
		views = append(views, models.ConversationView{
			ID:            sum.ID,
			Users:         []models.Profile{profileOrID(byID, sum.User1ID), profileOrID(byID, sum.User2ID)},
			Messages:      messages,
			MessageCount:  sum.MessageCount,
			LastMessageAt: sum.LastMessageAt,
			OpenedAt:      sum.OpenedAt,
			CreatedAt:     sum.CreatedAt,
		})
	}
	return views, nil
}

func (s *Service) messageViews(ctx context.Context, msgs []models.Message) ([]models.MessageView, error) {
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.SenderID)
	}
	byID, err := s.profiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]models.MessageView, 0, len(msgs))
	for _, m := range msgs {
		views = append(views, models.MessageView{
			ID:        m.ID,
			Content:   m.Content,
			Sender:    profileOrID(byID, m.SenderID),
			CreatedAt: m.CreatedAt,
		})
	}
	return views, nil
}

type noopEvents struct{}

func (noopEvents) MessageSent(context.Context, models.Message) {}
func (noopEvents) ConversationCreated(context.Context, models.Conversation) {}
