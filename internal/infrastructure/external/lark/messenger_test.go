package lark

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextContent(t *testing.T) {
	content, err := TextContent("line one\nsays \"hi\" \\ done")
	require.NoError(t, err)

	var decoded map[string]string
	require.NoError(t, json.Unmarshal([]byte(content), &decoded))
	assert.Equal(t, "line one\nsays \"hi\" \\ done", decoded["text"])
}

func TestNewMessenger_Defaults(t *testing.T) {
	m := NewMessenger(NewClient(Config{AppID: "cli_x", AppSecret: "s"}), "", "oc_123", nil)
	assert.Equal(t, "chat_id", m.receiveIDType)
	assert.Equal(t, "oc_123", m.receiveID)

	assert.Error(t, m.SendText(t.Context(), ""))
}
