package engines

import (
	"fmt"
	"os"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// Availability is the result of checking whether an engine can run.
type Availability struct {
	// Engine is the checked engine.
	Engine tts.EngineKind

	// Available is true when the engine is installed and configured.
	Available bool

	// Error explains why the engine is unavailable.
	Error error

	// Guidance tells the user how to fix the problem.
	Guidance string

	// Details holds what the check found, for display.
	Details map[string]string
}

// Check reports whether kind can run with creds. It looks for programs and
// credentials but makes no network calls.
func Check(kind tts.EngineKind, creds tts.Credentials, runner Runner) *Availability {
	if runner == nil {
		runner = NewSubprocess(0)
	}
	result := &Availability{Engine: kind, Details: make(map[string]string)}

	switch kind.Provider {
	case "":
		checkSystem(runner, result)
	case tts.ProviderGoogle:
		checkGoogle(creds, result)
	case tts.ProviderEdge:
		result.Available = true
		result.Details["status"] = "Ready (no account needed, requires network)"
	case tts.ProviderTencent:
		if creds[tts.CredSecretID] == "" || creds[tts.CredSecretKey] == "" {
			result.Error = fmt.Errorf("%w: secret_id and secret_key", tts.ErrMissingCredentials)
			result.Guidance = tencentGuidance
			return result
		}
		region := creds[tts.CredRegion]
		if region == "" {
			region = defaultTencentRegion
		}
		result.Details["region"] = region
		result.Available = true
	case tts.ProviderElevenLabs:
		if creds[tts.CredAPIKey] == "" {
			result.Error = fmt.Errorf("%w: api_key", tts.ErrMissingCredentials)
			result.Guidance = elevenLabsGuidance
			return result
		}
		result.Available = true
	default:
		result.Error = fmt.Errorf("%w: %s", tts.ErrInvalidEngine, kind)
		result.Guidance = "Supported engines: system, google, edge, tencent, elevenlabs"
	}
	return result
}

func checkSystem(runner Runner, result *Availability) {
	synth, path, err := findSynthesizer(runner)
	if err != nil {
		result.Error = err
		result.Guidance = systemGuidance
		return
	}
	result.Details["synthesizer"] = synth.name
	result.Details["path"] = path
	result.Available = true
}

func checkGoogle(creds tts.Credentials, result *Availability) {
	if file := creds[tts.CredCredentialsFile]; file != "" {
		if _, err := os.Stat(file); err != nil {
			result.Error = fmt.Errorf("credentials file not accessible: %w", err)
			result.Guidance = googleGuidance
			return
		}
		result.Details["credentials_file"] = file
		result.Available = true
		return
	}
	if creds[tts.CredAPIKey] != "" {
		result.Details["auth"] = "api key"
		result.Available = true
		return
	}
	result.Error = fmt.Errorf("%w: credentials_file or api_key", tts.ErrMissingCredentials)
	result.Guidance = googleGuidance
}

const systemGuidance = `No speech synthesizer is installed. To install:

   # Ubuntu/Debian
   sudo apt install espeak-ng

   # Arch Linux
   sudo pacman -S espeak-ng

   # Fedora
   sudo dnf install espeak-ng

macOS ships with "say", which is used automatically.`

const googleGuidance = `Google Cloud Text-to-Speech needs credentials. Either:

1. Point GOOGLE_APPLICATION_CREDENTIALS at a service account key, or add
   to the credentials file:
   google:
     credentials_file: ~/keys/tts.json

2. Or use an API key:
   google:
     api_key: AIza...`

const tencentGuidance = `Tencent Cloud TTS needs an API key pair. Set
TENCENTCLOUD_SECRET_ID and TENCENTCLOUD_SECRET_KEY, or add to the
credentials file:
   tencent:
     secret_id: AKID...
     secret_key: ...
     region: ap-guangzhou`

const elevenLabsGuidance = `ElevenLabs needs an API key. Set ELEVENLABS_API_KEY, or add to the
credentials file:
   elevenlabs:
     api_key: sk_...`
