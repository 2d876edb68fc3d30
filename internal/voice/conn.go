package voice

import (
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Conn is the live voice session's outbound side. The handle is threaded
// explicitly from join through capture to playback rather than looked up
// from global state.
type Conn interface {
	Ready() bool
	Speaking(bool) error
	OpusSend() chan<- []byte
}

// WaitReady polls the connection until it reports ready or the timeout
// expires. Joining is bounded; a connection that never becomes ready is
// abandoned and reported.
func WaitReady(conn Conn, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if conn.Ready() {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("voice connection not ready after %s", timeout)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// DiscordConn adapts a discordgo voice connection to Conn.
type DiscordConn struct {
	VC *discordgo.VoiceConnection
}

func (c *DiscordConn) Ready() bool {
	if c.VC == nil {
		return false
	}
	c.VC.RLock()
	defer c.VC.RUnlock()
	return c.VC.Ready
}

func (c *DiscordConn) Speaking(b bool) error {
	return c.VC.Speaking(b)
}

func (c *DiscordConn) OpusSend() chan<- []byte {
	return c.VC.OpusSend
}
