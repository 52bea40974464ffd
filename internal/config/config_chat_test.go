package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatSettingsDefaults(t *testing.T) {
	s := Chat{}.ToSettings()
	require.Equal(t, WSAuthStrict, s.WSAuthPolicy)
	require.Equal(t, 50, s.HistoryLimit)
	require.Equal(t, 256, s.SendQueueSize)
	require.True(t, s.AnnounceJoin)
	require.False(t, s.AnnounceLeave)
	require.NotEmpty(t, s.JoinMessage)
}

func TestChatSettingsParsesPolicy(t *testing.T) {
	require.Equal(t, WSAuthPermissive, Chat{WSAuthPolicy: "permissive"}.ToSettings().WSAuthPolicy)
	require.Equal(t, WSAuthPermissive, Chat{WSAuthPolicy: " Permissive "}.ToSettings().WSAuthPolicy)
	// 未知值回退 strict
	require.Equal(t, WSAuthStrict, Chat{WSAuthPolicy: "whatever"}.ToSettings().WSAuthPolicy)
}

func TestChatSettingsAnnounceOverrides(t *testing.T) {
	no, yes := false, true
	s := Chat{AnnounceJoin: &no, AnnounceLeave: &yes}.ToSettings()
	require.False(t, s.AnnounceJoin)
	require.True(t, s.AnnounceLeave)
}
