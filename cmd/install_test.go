package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jfmyers9/upnp-scribbles/internal/daemon"
)

func TestServiceCommandsFor(t *testing.T) {
	t.Run("darwin", func(t *testing.T) {
		cmds := serviceCommandsFor("darwin", "/Users/x/Library/LaunchAgents/a.plist")

		assert.Len(t, cmds.load, 1)
		assert.Equal(t, "launchctl", cmds.load[0][0])
		assert.Equal(t, "bootstrap", cmds.load[0][1])
		assert.True(t, strings.HasPrefix(cmds.load[0][2], "gui/"))
		assert.Equal(t, "/Users/x/Library/LaunchAgents/a.plist", cmds.load[0][3])
		assert.True(t, strings.HasSuffix(cmds.unload[0][2], "/"+daemon.ServiceLabel))
	})

	t.Run("linux", func(t *testing.T) {
		cmds := serviceCommandsFor("linux", "/home/x/.config/systemd/user/upnp-scribbles.service")

		assert.Equal(t, [][]string{
			{"systemctl", "--user", "daemon-reload"},
			{"systemctl", "--user", "enable", "--now", "upnp-scribbles.service"},
		}, cmds.load)
		assert.Equal(t, [][]string{
			{"systemctl", "--user", "disable", "--now", "upnp-scribbles.service"},
		}, cmds.unload)
		assert.Equal(t, "systemctl --user status upnp-scribbles.service", cmds.status)
	})
}
