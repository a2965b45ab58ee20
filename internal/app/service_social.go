package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"

	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/access"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/search"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/store"
	"github.com/Eduard-crypt/orchids-connect-capital-sub002/internal/util"
)

type StartThreadInput struct {
	ListingID string `json:"listingId"`
	Body      string `json:"body"`
}

type SendMessageInput struct {
	Body string `json:"body"`
}

type ForumPostInput struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
}

type ForumReplyInput struct {
	Body string `json:"body"`
}

var forumCategories = map[string]struct{}{
	"general":   {},
	"buying":    {},
	"selling":   {},
	"migration": {},
	"legal":     {},
}

// StartThread opens (or reuses) the conversation between a buyer and the
// seller of a listing and posts the first message.
func (s *Service) StartThread(ctx context.Context, session Session, input StartThreadInput) (map[string]any, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Message body is required", nil)
	}
	listing, err := s.store.GetListing(ctx, input.ListingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != "approved" {
		return nil, domainError(http.StatusConflict, "LISTING_NOT_APPROVED", "Sellers can only be contacted on approved listings", nil)
	}
	if listing.SellerID == session.UserID {
		return nil, domainError(http.StatusConflict, "INVALID_STATUS", "You cannot message yourself", nil)
	}

	thread, err := s.store.EnsureThread(ctx, store.MessageThread{
		ID:        util.NewID("thr"),
		ListingID: listing.ID,
		BuyerID:   session.UserID,
		SellerID:  listing.SellerID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.InsertMessage(ctx, store.ThreadMessage{
		ID:       util.NewID("msg"),
		ThreadID: thread.ID,
		SenderID: session.UserID,
		Body:     input.Body,
	}, true); err != nil {
		return nil, err
	}

	s.notify(ctx, listing.SellerID, "message_received", "New message",
		fmt.Sprintf("%s sent you a message about %q.", session.UserName, listing.Title), thread.ID)

	fresh, err := s.store.GetThread(ctx, thread.ID)
	if err != nil {
		return nil, err
	}
	return threadPayload(fresh, session.UserID), nil
}

func (s *Service) SendMessage(ctx context.Context, session Session, threadID string, input SendMessageInput) (map[string]any, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Message body is required", nil)
	}
	thread, err := s.loadThreadForParty(ctx, session, threadID)
	if err != nil {
		return nil, err
	}

	senderIsBuyer := session.UserID == thread.BuyerID
	msg := store.ThreadMessage{
		ID:       util.NewID("msg"),
		ThreadID: thread.ID,
		SenderID: session.UserID,
		Body:     input.Body,
	}
	if err := s.store.InsertMessage(ctx, msg, senderIsBuyer); err != nil {
		return nil, err
	}

	recipient := thread.SellerID
	if !senderIsBuyer {
		recipient = thread.BuyerID
	}
	s.notify(ctx, recipient, "message_received", "New message",
		fmt.Sprintf("%s sent you a message.", session.UserName), thread.ID)

	return map[string]any{
		"id":       msg.ID,
		"threadId": msg.ThreadID,
		"senderId": msg.SenderID,
		"body":     msg.Body,
	}, nil
}

func (s *Service) ListThreads(ctx context.Context, session Session) ([]map[string]any, error) {
	threads, err := s.store.ListThreadsForUser(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(threads))
	for _, thread := range threads {
		payloads = append(payloads, threadPayload(thread, session.UserID))
	}
	return payloads, nil
}

func (s *Service) ListMessages(ctx context.Context, session Session, threadID string) ([]map[string]any, error) {
	if _, err := s.loadThreadForParty(ctx, session, threadID); err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(messages))
	for _, msg := range messages {
		payloads = append(payloads, map[string]any{
			"id":        msg.ID,
			"threadId":  msg.ThreadID,
			"senderId":  msg.SenderID,
			"body":      msg.Body,
			"createdAt": msg.CreatedAt,
		})
	}
	return payloads, nil
}

// MarkThreadRead resets the caller's unread counter on the thread.
func (s *Service) MarkThreadRead(ctx context.Context, session Session, threadID string) error {
	thread, err := s.loadThreadForParty(ctx, session, threadID)
	if err != nil {
		return err
	}
	return s.store.MarkThreadRead(ctx, threadID, session.UserID == thread.BuyerID)
}

func (s *Service) loadThreadForParty(ctx context.Context, session Session, threadID string) (store.MessageThread, error) {
	thread, err := s.store.GetThread(ctx, threadID)
	if err != nil {
		return store.MessageThread{}, err
	}
	if access.ResolveParty(session.UserID, thread.BuyerID, thread.SellerID) == access.PartyNone {
		return store.MessageThread{}, domainError(http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "You are not a participant in this thread", nil)
	}
	return thread, nil
}

// ── Notifications ──

func (s *Service) Notifications(ctx context.Context, session Session, unreadOnly bool) ([]map[string]any, error) {
	items, err := s.store.ListNotifications(ctx, session.UserID, unreadOnly)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(items))
	for _, n := range items {
		payloads = append(payloads, map[string]any{
			"id":          n.ID,
			"kind":        n.Kind,
			"title":       n.Title,
			"body":        n.Body,
			"referenceId": n.ReferenceID,
			"readAt":      n.ReadAt,
			"createdAt":   n.CreatedAt,
		})
	}
	return payloads, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, session Session, notificationID string) error {
	ok, err := s.store.MarkNotificationRead(ctx, notificationID, session.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return sql.ErrNoRows
	}
	return nil
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, session Session) error {
	return s.store.MarkAllNotificationsRead(ctx, session.UserID)
}

// ── Forum ──

func (s *Service) CreateForumPost(ctx context.Context, session Session, input ForumPostInput) (map[string]any, error) {
	if strings.TrimSpace(input.Title) == "" || strings.TrimSpace(input.Body) == "" {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Title and body are required", nil)
	}
	category := input.Category
	if category == "" {
		category = "general"
	}
	if _, ok := forumCategories[category]; !ok {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Unknown forum category", nil)
	}

	post := store.ForumPost{
		ID:         util.NewID("fpo"),
		AuthorID:   session.UserID,
		AuthorName: session.UserName,
		Title:      strings.TrimSpace(input.Title),
		Body:       input.Body,
		Category:   category,
	}
	if err := s.store.InsertForumPost(ctx, post); err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.IndexPost(search.PostRecord{
			ID:       post.ID,
			Title:    post.Title,
			Body:     post.Body,
			Category: post.Category,
		})
	}

	created, err := s.store.GetForumPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	return forumPostPayload(created), nil
}

// ListForumPosts returns the wrapped posts collection, optionally filtered
// by category.
func (s *Service) ListForumPosts(ctx context.Context, category string) (map[string]any, error) {
	posts, err := s.store.ListForumPosts(ctx, category)
	if err != nil {
		return nil, err
	}
	payloads := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		payloads = append(payloads, forumPostPayload(post))
	}
	return map[string]any{"posts": payloads}, nil
}

func (s *Service) GetForumPost(ctx context.Context, postID string) (map[string]any, error) {
	post, err := s.store.GetForumPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	replies, err := s.store.ListForumReplies(ctx, postID)
	if err != nil {
		return nil, err
	}

	replyPayloads := make([]map[string]any, 0, len(replies))
	for _, reply := range replies {
		replyPayloads = append(replyPayloads, map[string]any{
			"id":         reply.ID,
			"postId":     reply.PostID,
			"authorId":   reply.AuthorID,
			"authorName": reply.AuthorName,
			"body":       reply.Body,
			"createdAt":  reply.CreatedAt,
		})
	}
	payload := forumPostPayload(post)
	payload["replies"] = replyPayloads
	return payload, nil
}

func (s *Service) CreateForumReply(ctx context.Context, session Session, postID string, input ForumReplyInput) (map[string]any, error) {
	if strings.TrimSpace(input.Body) == "" {
		return nil, domainError(http.StatusBadRequest, "INVALID_BODY", "Reply body is required", nil)
	}
	post, err := s.store.GetForumPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	reply := store.ForumReply{
		ID:         util.NewID("frp"),
		PostID:     postID,
		AuthorID:   session.UserID,
		AuthorName: session.UserName,
		Body:       input.Body,
	}
	if err := s.store.InsertForumReply(ctx, reply); err != nil {
		return nil, err
	}

	if post.AuthorID != session.UserID {
		s.notify(ctx, post.AuthorID, "forum_reply", "New reply",
			fmt.Sprintf("%s replied to %q.", session.UserName, post.Title), post.ID)
	}
	return map[string]any{
		"id":         reply.ID,
		"postId":     reply.PostID,
		"authorId":   reply.AuthorID,
		"authorName": reply.AuthorName,
		"body":       reply.Body,
	}, nil
}

func threadPayload(thread store.MessageThread, viewerID string) map[string]any {
	unread := thread.SellerUnread
	if viewerID == thread.BuyerID {
		unread = thread.BuyerUnread
	}
	return map[string]any{
		"id":            thread.ID,
		"listingId":     thread.ListingID,
		"buyerId":       thread.BuyerID,
		"sellerId":      thread.SellerID,
		"unreadCount":   unread,
		"lastMessageAt": thread.LastMessageAt,
		"createdAt":     thread.CreatedAt,
	}
}

func forumPostPayload(post store.ForumPost) map[string]any {
	return map[string]any{
		"id":         post.ID,
		"authorId":   post.AuthorID,
		"authorName": post.AuthorName,
		"title":      post.Title,
		"body":       post.Body,
		"category":   post.Category,
		"replyCount": post.ReplyCount,
		"createdAt":  post.CreatedAt,
	}
}
