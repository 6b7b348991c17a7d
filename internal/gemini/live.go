package gemini

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hotel-receptionist/internal/prompt"
	"hotel-receptionist/internal/session"
	"hotel-receptionist/internal/tools"

	"google.golang.org/genai"
)

const inputMIMEType = "audio/pcm;rate=16000"

// Live returns a session.Connector backed by the Live API.
func (c *Client) Live() *LiveConnector {
	return &LiveConnector{client: c}
}

// LiveConnector opens audio streams to the Live API.
type LiveConnector struct {
	client *Client
}

// Connect opens a streaming session configured with the current knowledge
// base, tool set and voice.
func (l *LiveConnector) Connect(ctx context.Context) (session.Stream, error) {
	c := l.client
	cfg, err := c.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	conn, err := c.genai.Live.Connect(ctx, c.opts.LiveModel, LiveConfig(prompt.SystemInstruction(cfg, c.opts.Now()), prompt.Tools(cfg), c.opts.Voice))
	c.observe("live", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("connect live model: %w", err)
	}
	c.logger.Info("live session opened", "model", c.opts.LiveModel, "hotel", cfg.HotelName)
	return &liveStream{conn: conn}, nil
}

// LiveConfig builds the connect configuration for an audio session.
func LiveConfig(instruction string, toolset []*genai.Tool, voice string) *genai.LiveConnectConfig {
	lc := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		SystemInstruction:        genai.NewContentFromText(instruction, genai.RoleUser),
		Tools:                    toolset,
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if voice != "" {
		lc.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
			},
		}
	}
	return lc
}

type liveStream struct {
	conn *genai.Session

	// the SDK session is not safe for concurrent writes
	sendMu    sync.Mutex
	closeOnce sync.Once
}

func (s *liveStream) SendAudio(_ context.Context, pcm []byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.conn.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{Data: pcm, MIMEType: inputMIMEType},
	})
}

func (s *liveStream) SendText(_ context.Context, text string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.conn.SendClientContent(genai.LiveClientContentInput{
		Turns: []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
	})
}

func (s *liveStream) SendToolResponse(_ context.Context, resp session.ToolResponse) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()
	return s.conn.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: []*genai.FunctionResponse{{
			ID:       resp.ID,
			Name:     resp.Name,
			Response: resp.Response,
		}},
	})
}

// Receive blocks on the socket; Close unblocks it.
func (s *liveStream) Receive(ctx context.Context) (session.Event, error) {
	if err := ctx.Err(); err != nil {
		return session.Event{}, err
	}
	msg, err := s.conn.Receive()
	if err != nil {
		return session.Event{}, err
	}
	return translate(msg), nil
}

func (s *liveStream) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}

func translate(msg *genai.LiveServerMessage) session.Event {
	var ev session.Event
	if msg == nil {
		return ev
	}
	if sc := msg.ServerContent; sc != nil {
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part != nil && part.InlineData != nil {
					ev.Audio = append(ev.Audio, part.InlineData.Data...)
				}
			}
		}
		if sc.InputTranscription != nil {
			ev.InputText = sc.InputTranscription.Text
		}
		if sc.OutputTranscription != nil {
			ev.OutputText = sc.OutputTranscription.Text
		}
		ev.TurnComplete = sc.TurnComplete
		ev.Interrupted = sc.Interrupted
	}
	if tc := msg.ToolCall; tc != nil {
		for _, fc := range tc.FunctionCalls {
			if fc == nil {
				continue
			}
			ev.ToolCalls = append(ev.ToolCalls, tools.Call{ID: fc.ID, Name: fc.Name, Args: tools.Args(fc.Args)})
		}
	}
	return ev
}
