package store

import (
	"context"
	"fmt"
)

const threadColumns = `
	id, listing_id, buyer_id, seller_id, buyer_unread, seller_unread, last_message_at, created_at
`

func scanThread(row interface{ Scan(...any) error }) (MessageThread, error) {
	var item MessageThread
	err := row.Scan(
		&item.ID,
		&item.ListingID,
		&item.BuyerID,
		&item.SellerID,
		&item.BuyerUnread,
		&item.SellerUnread,
		&item.LastMessageAt,
		&item.CreatedAt,
	)
	return item, err
}

// EnsureThread returns the thread for a listing/buyer pair, creating it on
// first contact. The unique index on (listing_id, buyer_id) makes the upsert
// safe under concurrent first messages.
func (s *PostgresStore) EnsureThread(ctx context.Context, thread MessageThread) (MessageThread, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO message_threads (id, listing_id, buyer_id, seller_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (listing_id, buyer_id) DO UPDATE SET listing_id = EXCLUDED.listing_id
		RETURNING `+threadColumns+`
	`, thread.ID, thread.ListingID, thread.BuyerID, thread.SellerID)
	return scanThread(row)
}

func (s *PostgresStore) GetThread(ctx context.Context, threadID string) (MessageThread, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+threadColumns+` FROM message_threads WHERE id=$1`, threadID)
	return scanThread(row)
}

func (s *PostgresStore) ListThreadsForUser(ctx context.Context, userID string) ([]MessageThread, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+threadColumns+` FROM message_threads
		WHERE buyer_id=$1 OR seller_id=$1
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	items := make([]MessageThread, 0)
	for rows.Next() {
		item, err := scanThread(rows)
		if err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}
	return items, nil
}

// InsertMessage appends to a thread and bumps the counterpart's unread
// counter in one transaction.
func (s *PostgresStore) InsertMessage(ctx context.Context, msg ThreadMessage, senderIsBuyer bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin message tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO thread_messages (id, thread_id, sender_id, body)
		VALUES ($1, $2, $3, $4)
	`, msg.ID, msg.ThreadID, msg.SenderID, msg.Body); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	column := "seller_unread"
	if !senderIsBuyer {
		column = "buyer_unread"
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE message_threads SET `+column+` = `+column+` + 1, last_message_at=NOW()
		WHERE id=$1
	`, msg.ThreadID); err != nil {
		return fmt.Errorf("bump unread: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit message tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, threadID string) ([]ThreadMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, thread_id, sender_id, body, created_at
		FROM thread_messages
		WHERE thread_id=$1
		ORDER BY created_at ASC, id ASC
	`, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]ThreadMessage, 0)
	for rows.Next() {
		var item ThreadMessage
		if err := rows.Scan(&item.ID, &item.ThreadID, &item.SenderID, &item.Body, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) MarkThreadRead(ctx context.Context, threadID string, asBuyer bool) error {
	column := "buyer_unread"
	if !asBuyer {
		column = "seller_unread"
	}
	if _, err := s.db.ExecContext(ctx, `
		UPDATE message_threads SET `+column+` = 0 WHERE id=$1
	`, threadID); err != nil {
		return fmt.Errorf("mark thread read: %w", err)
	}
	return nil
}

// ── Notifications ──

func (s *PostgresStore) InsertNotification(ctx context.Context, n Notification) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, kind, title, body, reference_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
	`, n.ID, n.UserID, n.Kind, n.Title, n.Body, n.ReferenceID)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool) ([]Notification, error) {
	query := `
		SELECT id, user_id, kind, title, body, COALESCE(reference_id, ''), read_at, created_at
		FROM notifications
		WHERE user_id=$1
	`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT 100`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]Notification, 0)
	for rows.Next() {
		var item Notification
		if err := rows.Scan(&item.ID, &item.UserID, &item.Kind, &item.Title, &item.Body, &item.ReferenceID, &item.ReadAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) MarkNotificationRead(ctx context.Context, notificationID, userID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at=NOW() WHERE id=$1 AND user_id=$2 AND read_at IS NULL
	`, notificationID, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark notification read rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET read_at=NOW() WHERE user_id=$1 AND read_at IS NULL
	`, userID); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// ── Forum ──

func (s *PostgresStore) InsertForumPost(ctx context.Context, post ForumPost) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO forum_posts (id, author_id, author_name, title, body, category)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, post.ID, post.AuthorID, post.AuthorName, post.Title, post.Body, post.Category)
	if err != nil {
		return fmt.Errorf("insert forum post: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetForumPost(ctx context.Context, postID string) (ForumPost, error) {
	var item ForumPost
	err := s.db.QueryRowContext(ctx, `
		SELECT id, author_id, author_name, title, body, category, reply_count, created_at
		FROM forum_posts
		WHERE id=$1
	`, postID).Scan(&item.ID, &item.AuthorID, &item.AuthorName, &item.Title, &item.Body, &item.Category, &item.ReplyCount, &item.CreatedAt)
	if err != nil {
		return ForumPost{}, err
	}
	return item, nil
}

func (s *PostgresStore) ListForumPosts(ctx context.Context, category string) ([]ForumPost, error) {
	query := `
		SELECT id, author_id, author_name, title, body, category, reply_count, created_at
		FROM forum_posts
	`
	args := []any{}
	if category != "" {
		query += ` WHERE category=$1`
		args = append(args, category)
	}
	query += ` ORDER BY created_at DESC LIMIT 100`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list forum posts: %w", err)
	}
	defer rows.Close()

	items := make([]ForumPost, 0)
	for rows.Next() {
		var item ForumPost
		if err := rows.Scan(&item.ID, &item.AuthorID, &item.AuthorName, &item.Title, &item.Body, &item.Category, &item.ReplyCount, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan forum post: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forum posts: %w", err)
	}
	return items, nil
}

// InsertForumReply stores the reply and bumps the parent's reply counter in
// one transaction.
func (s *PostgresStore) InsertForumReply(ctx context.Context, reply ForumReply) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reply tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO forum_replies (id, post_id, author_id, author_name, body)
		VALUES ($1, $2, $3, $4, $5)
	`, reply.ID, reply.PostID, reply.AuthorID, reply.AuthorName, reply.Body); err != nil {
		return fmt.Errorf("insert forum reply: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE forum_posts SET reply_count = reply_count + 1 WHERE id=$1
	`, reply.PostID); err != nil {
		return fmt.Errorf("bump reply count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reply tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListForumReplies(ctx context.Context, postID string) ([]ForumReply, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, author_id, author_name, body, created_at
		FROM forum_replies
		WHERE post_id=$1
		ORDER BY created_at ASC, id ASC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("list forum replies: %w", err)
	}
	defer rows.Close()

	items := make([]ForumReply, 0)
	for rows.Next() {
		var item ForumReply
		if err := rows.Scan(&item.ID, &item.PostID, &item.AuthorID, &item.AuthorName, &item.Body, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan forum reply: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forum replies: %w", err)
	}
	return items, nil
}
