package enroll

import "context"

type chatIDContextKey struct{}
type requestSourceContextKey struct{}

// WithChatID attaches the originating chat identifier to ctx. The Engine
// records it in audit events so operators can trace an enrollment back to
// the conversation that drove it.
func WithChatID(ctx context.Context, chatID int64) context.Context {
	return context.WithValue(ctx, chatIDContextKey{}, chatID)
}

// WithRequestSource attaches a free-form source tag (webhook, poller,
// reaper) to ctx for audit metadata.
func WithRequestSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, requestSourceContextKey{}, source)
}

func chatIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}

	chatID, _ := ctx.Value(chatIDContextKey{}).(int64)
	return chatID
}

func requestSourceFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	source, _ := ctx.Value(requestSourceContextKey{}).(string)
	return source
}
