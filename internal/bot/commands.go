package bot

import (
	"log"

	"github.com/bwmarrin/discordgo"

	"github.com/Kalasky/alina-bot/internal/voice"
)

var commands = []*discordgo.ApplicationCommand{
	{Name: "join", Description: "Join your voice channel and start listening"},
	{
		Name:        "record",
		Description: "Enable voice capture for a speaker",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "speaker",
				Description: "The speaker to record",
				Required:    true,
			},
		},
	},
	{Name: "leave", Description: "Leave the voice channel"},
}

func (b *Bot) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	log.Println("Ready!")
	if b.cfg.GuildID == "" {
		log.Println("no guild ID configured, skipping command registration")
		return
	}
	for _, cmd := range commands {
		if _, err := s.ApplicationCommandCreate(s.State.User.ID, b.cfg.GuildID, cmd); err != nil {
			log.Printf("register command %s: %v", cmd.Name, err)
		}
	}
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	switch i.ApplicationCommandData().Name {
	case "join":
		b.handleJoin(s, i)
	case "record":
		b.handleRecord(s, i)
	case "leave":
		b.handleLeave(s, i)
	default:
		replyEphemeral(s, i, "Command not recognized")
	}
}

func (b *Bot) handleJoin(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.mu.Lock()
	joined := b.vc != nil
	b.mu.Unlock()
	if joined {
		replyEphemeral(s, i, "Ready!")
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		log.Printf("defer reply: %v", err)
		return
	}

	channelID := b.callerVoiceChannel(s, i)
	if channelID == "" {
		followUp(s, i, "Join a voice channel and then try that again!")
		return
	}

	vc, err := s.ChannelVoiceJoin(i.GuildID, channelID, false, false)
	if err != nil {
		log.Printf("voice join: %v", err)
		followUp(s, i, "Failed to join voice channel, please try again later!")
		return
	}

	conn := &voice.DiscordConn{VC: vc}
	if err := voice.WaitReady(conn, b.cfg.JoinTimeout); err != nil {
		log.Printf("voice ready: %v", err)
		_ = vc.Disconnect()
		followUp(s, i, "Failed to join voice channel within 20 seconds, please try again later!")
		return
	}

	recv := voice.NewReceiver(vc, b.cfg.SilenceDuration, b.onSpeakingStart)
	if err := b.attachVoice(vc, recv, conn); err != nil {
		// a concurrent join won the race; ChannelVoiceJoin handed back the
		// connection it already installed, so leave it untouched
		followUp(s, i, "Ready!")
		return
	}
	recv.Start()

	followUp(s, i, "Ready!")
}

func (b *Bot) handleRecord(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.mu.Lock()
	recv := b.receiver
	b.mu.Unlock()
	if recv == nil {
		replyEphemeral(s, i, "Join a voice channel and then try that again!")
		return
	}

	opts := i.ApplicationCommandData().Options
	if len(opts) == 0 {
		replyEphemeral(s, i, "Missing speaker option")
		return
	}
	speaker := opts[0].UserValue(s)
	if speaker == nil {
		replyEphemeral(s, i, "Missing speaker option")
		return
	}

	b.registry.Enable(speaker.ID)
	if recv.IsSpeaking(speaker.ID) {
		b.beginCapture(speaker.ID)
	}
	replyEphemeral(s, i, "Listening!")
}

func (b *Bot) handleLeave(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.mu.Lock()
	connected := b.vc != nil
	b.mu.Unlock()
	if !connected {
		replyEphemeral(s, i, "Not playing in this server!")
		return
	}
	b.leaveVoice()
	replyEphemeral(s, i, "Left the channel!")
}

// callerVoiceChannel resolves the voice channel the command issuer is in.
func (b *Bot) callerVoiceChannel(s *discordgo.Session, i *discordgo.InteractionCreate) string {
	if i.Member == nil || i.Member.User == nil {
		return ""
	}
	guild, err := s.State.Guild(i.GuildID)
	if err != nil {
		return ""
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == i.Member.User.ID {
			return vs.ChannelID
		}
	}
	return ""
}

func replyEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("interaction reply: %v", err)
	}
}

func followUp(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{Content: msg}); err != nil {
		log.Printf("interaction follow-up: %v", err)
	}
}
