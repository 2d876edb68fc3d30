package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	DiscordBotToken string
	GuildID         string

	OpenAIKey   string
	LLMModel    string
	TTSProvider string
	TTSVoice    string
	ElevenKey   string
	ElevenVoice string

	FFmpegPath    string
	RecordingsDir string
	SpeechDir     string

	SilenceDuration time.Duration
	JoinTimeout     time.Duration
	MaxCaptures     int
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Error loading .env file")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	token := os.Getenv("DISCORD_BOT_TOKEN")
	if token == "" {
		log.Println("Warning: DISCORD_BOT_TOKEN not set - the bot will not connect")
	}
	guildID := os.Getenv("GUILD_ID")
	if guildID == "" {
		log.Println("Warning: GUILD_ID not set - slash commands will not be registered")
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set - transcription, replies and TTS will not work")
	}
	llmModel := os.Getenv("OPENAI_LLM_MODEL")
	if llmModel == "" {
		llmModel = "gpt-3.5-turbo-1106"
	}

	ttsProvider := os.Getenv("TTS_PROVIDER")
	if ttsProvider == "" {
		ttsProvider = "openai"
	}
	ttsVoice := os.Getenv("TTS_VOICE")
	if ttsVoice == "" {
		ttsVoice = "fable"
	}
	elevenKey := os.Getenv("ELEVENLABS_API_KEY")
	elevenVoice := os.Getenv("ELEVENLABS_VOICE_ID")
	if ttsProvider == "elevenlabs" && (elevenKey == "" || elevenVoice == "") {
		log.Println("Warning: TTS_PROVIDER=elevenlabs but ELEVENLABS_API_KEY or ELEVENLABS_VOICE_ID not set")
	}

	ffmpeg := os.Getenv("FFMPEG_PATH")
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	recordings := os.Getenv("RECORDINGS_DIR")
	if recordings == "" {
		recordings = "./recordings"
	}
	speech := os.Getenv("SPEECH_DIR")
	if speech == "" {
		speech = "./speech"
	}

	silence := durationMsEnv("SILENCE_DURATION_MS", 2000*time.Millisecond)
	joinTimeout := durationMsEnv("JOIN_TIMEOUT_MS", 20*time.Second)

	maxCaptures := 1
	if v := os.Getenv("MAX_CAPTURES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			log.Printf("Warning: invalid MAX_CAPTURES %q - using 1", v)
		} else {
			maxCaptures = n
		}
	}

	log.Printf("config: HTTP_ADDRESS=%s silence=%s max_captures=%d", addr, silence, maxCaptures)
	return Config{
		HTTPAddress:     addr,
		DiscordBotToken: token,
		GuildID:         guildID,
		OpenAIKey:       openAIKey,
		LLMModel:        llmModel,
		TTSProvider:     ttsProvider,
		TTSVoice:        ttsVoice,
		ElevenKey:       elevenKey,
		ElevenVoice:     elevenVoice,
		FFmpegPath:      ffmpeg,
		RecordingsDir:   recordings,
		SpeechDir:       speech,
		SilenceDuration: silence,
		JoinTimeout:     joinTimeout,
		MaxCaptures:     maxCaptures,
	}
}

func durationMsEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		log.Printf("Warning: invalid %s %q - using %s", key, v, def)
		return def
	}
	return time.Duration(ms) * time.Millisecond
}
