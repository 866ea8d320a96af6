package lark

import (
	"context"
	"encoding/json"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// Messenger implements port.MessageSender by posting IM messages to one
// fixed chat or user
type Messenger struct {
	client        *lark.Client
	receiveIDType string
	receiveID     string
	logger        *zap.Logger
}

// NewMessenger creates a sender that delivers to receiveID. receiveIDType is
// one of open_id, user_id, union_id, email or chat_id; chat_id when empty.
func NewMessenger(client *lark.Client, receiveIDType, receiveID string, logger *zap.Logger) *Messenger {
	if receiveIDType == "" {
		receiveIDType = "chat_id"
	}
	return &Messenger{
		client:        client,
		receiveIDType: receiveIDType,
		receiveID:     receiveID,
		logger:        nopIfNil(logger),
	}
}

// SendText posts a plain text message
func (m *Messenger) SendText(ctx context.Context, text string) error {
	if text == "" {
		return fmt.Errorf("content cannot be empty")
	}

	content, err := TextContent(text)
	if err != nil {
		return err
	}

	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(m.receiveIDType).
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(m.receiveID).
			MsgType("text").
			Content(content).
			Build()).
		Build()

	resp, err := m.client.Im.Message.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", m.receiveID),
			zap.Error(err))
		return fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", m.receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("receive_id", m.receiveID))
	return nil
}

// TextContent builds the JSON content body of a text message
func TextContent(text string) (string, error) {
	b, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("failed to marshal message content: %w", err)
	}
	return string(b), nil
}
