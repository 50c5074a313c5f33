package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WhatsAppTransport — минимальная справочная реализация ChatTransport для
// WhatsApp Business Cloud API: простой net/http клиент без собственных
// ретраев — повторные попытки это забота исходящей очереди (OMQ), не
// транспорта.
type WhatsAppTransport struct {
	baseURL     string
	accessToken string
	client      *http.Client
}

// NewWhatsAppTransport создаёт транспорт для заданного номера телефона
// WhatsApp Business API (phoneNumberID) с токеном доступа.
func NewWhatsAppTransport(baseURL, phoneNumberID, accessToken string) *WhatsAppTransport {
	return &WhatsAppTransport{
		baseURL:     fmt.Sprintf("%s/%s/messages", baseURL, phoneNumberID),
		accessToken: accessToken,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type textPayload struct {
	Body string `json:"body"`
}

type interactiveButton struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

type interactiveAction struct {
	Buttons []interactiveButton `json:"buttons"`
}

type interactiveBody struct {
	Type   string `json:"type"`
	Body   struct {
		Text string `json:"text"`
	} `json:"body"`
	Action interactiveAction `json:"action"`
}

type outboundEnvelope struct {
	MessagingProduct string           `json:"messaging_product"`
	To               string           `json:"to"`
	Type             string           `json:"type"`
	Text             *textPayload     `json:"text,omitempty"`
	Interactive      *interactiveBody `json:"interactive,omitempty"`
}

func buildEnvelope(msg OutboundMessage) outboundEnvelope {
	env := outboundEnvelope{
		MessagingProduct: "whatsapp",
		To:               msg.Recipient,
		Type:             string(msg.Type),
	}

	switch msg.Type {
	case TypeInteractive:
		body := interactiveBody{Type: "button"}
		body.Body.Text = msg.Body
		for _, btn := range msg.Buttons {
			b := interactiveButton{Type: "reply"}
			b.Reply.ID = btn.ID
			b.Reply.Title = btn.Title
			body.Action.Buttons = append(body.Action.Buttons, b)
		}
		env.Interactive = &body
	default:
		env.Text = &textPayload{Body: msg.Body}
	}

	return env
}

// Send отправляет сообщение через WhatsApp Business Cloud API. Неуспешные
// ответы оборачиваются в TransportError, чтобы вызывающая очередь могла
// отличить временный сбой от постоянного.
func (t *WhatsAppTransport) Send(ctx context.Context, msg OutboundMessage) error {
	body, err := json.Marshal(buildEnvelope(msg))
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.accessToken)

	resp, err := t.client.Do(req)
	if err != nil {
		return &TransportError{StatusCode: 0, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("whatsapp transport: status %d: %s", resp.StatusCode, string(respBody)),
		}
	}

	return nil
}
