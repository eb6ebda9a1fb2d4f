package voice

import "testing"

func silentPCM(samples int) []byte {
	return make([]byte, samples*2)
}

func loudPCM(samples int) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < len(pcm); i += 2 {
		pcm[i] = 0x10
	}
	return pcm
}

func TestVAD_TriggersAfterSilenceWindow(t *testing.T) {
	v := NewVAD(100)
	if v.Feed(loudPCM(50)) {
		t.Fatal("expected no endpoint while speech is ongoing")
	}
	if v.Feed(silentPCM(50)) {
		t.Fatal("expected no endpoint before the silence window is reached")
	}
	if !v.Feed(silentPCM(50)) {
		t.Fatal("expected endpoint once cumulative silence reaches the window")
	}
}

func TestVAD_SpeechResetsSilenceCounter(t *testing.T) {
	v := NewVAD(100)
	v.Feed(silentPCM(80))
	v.Feed(loudPCM(1))
	if v.Feed(silentPCM(80)) {
		t.Fatal("expected speech partway through to reset the silence counter")
	}
}

func TestVAD_Reset(t *testing.T) {
	v := NewVAD(10)
	v.Feed(silentPCM(10))
	v.Reset()
	if v.Feed(silentPCM(5)) {
		t.Fatal("expected Reset to clear accumulated silence")
	}
}

func TestVAD_DefaultsInvalidWindow(t *testing.T) {
	v := NewVAD(0)
	if v.silenceWindow <= 0 {
		t.Fatal("expected a positive default silence window")
	}
}
