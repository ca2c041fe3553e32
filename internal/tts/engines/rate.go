package engines

import (
	"fmt"
	"math"

	"github.com/dgnsrekt/readaloud/internal/tts"
)

// speedRatio converts words per minute into a multiple of the default
// rate. 200 wpm is 1.0.
func speedRatio(rate int) float64 {
	return float64(tts.ClampRate(rate)) / float64(tts.DefaultRate)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// GoogleSpeakingRate maps a rate onto Google's speaking_rate, which scales
// linearly and accepts 0.25 to 4.0.
func GoogleSpeakingRate(rate int) float64 {
	return clamp(speedRatio(rate), 0.25, 4.0)
}

// TencentSpeed maps a rate onto Tencent's Speed field. Each step is about
// 20% of normal speed and the API accepts -2 to 6.
func TencentSpeed(rate int) float64 {
	return clamp(math.Round((speedRatio(rate)-1)*5), -2, 6)
}

// ElevenLabsSpeed maps a rate onto the voice_settings speed, which accepts
// 0.7 to 1.2.
func ElevenLabsSpeed(rate int) float64 {
	return clamp(speedRatio(rate), 0.7, 1.2)
}

// EspeakRate returns the -s argument for espeak, which takes words per
// minute between 80 and 450.
func EspeakRate(rate int) int {
	return int(clamp(float64(tts.ClampRate(rate)), 80, 450))
}

// RateLabel returns a human-readable rate such as "250 wpm (1.25x)".
func RateLabel(rate int) string {
	rate = tts.ClampRate(rate)
	return fmt.Sprintf("%d wpm (%.2fx)", rate, speedRatio(rate))
}
