package logsink

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/cafe-order-core/internal/notification/domain"
)

func TestNotifyLogsNotice(t *testing.T) {
	var buf bytes.Buffer
	n := NewNotifier(slog.New(slog.NewJSONHandler(&buf, nil)))

	require.NoError(t, n.Notify(context.Background(), domain.Notice{OrderID: "o-1", Kind: domain.NoticeReady, Message: "Your order is ready."}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "customer notified", line["msg"])
	assert.Equal(t, "o-1", line["order_id"])
	assert.Equal(t, "order_ready", line["kind"])
}
