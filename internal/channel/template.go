package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/broadwing/dispatch/internal/domain"
)

// templateComponentPayload is the provider's wire shape for one template
// component, distinct from domain.Component's internal representation.
type templateComponentPayload struct {
	Type    string           `json:"type"`
	Text    string           `json:"text,omitempty"`
	Buttons []templateButton `json:"buttons,omitempty"`
}

type templateButton struct {
	Type string `json:"type"`
	Text string `json:"text"`
	URL  string `json:"url,omitempty"`
}

type createTemplateResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Submit implements the whatsapp package's TemplateSubmitter interface,
// posting tmpl to the Business Management API's message_templates
// endpoint and returning the provider-assigned template id.
func (a *ProviderAPIAdapter) Submit(ctx context.Context, tmpl *domain.WhatsAppTemplate) (string, error) {
	components := make([]templateComponentPayload, 0, len(tmpl.Components))
	for _, c := range tmpl.Components {
		payload := templateComponentPayload{Type: string(c.Type), Text: c.Text}
		for _, b := range c.Buttons {
			payload.Buttons = append(payload.Buttons, templateButton{Type: b.Type, Text: b.Text, URL: b.URL})
		}
		components = append(components, payload)
	}

	body, err := json.Marshal(map[string]interface{}{
		"name":       tmpl.Name,
		"language":   tmpl.Language,
		"category":   tmpl.Category,
		"components": components,
	})
	if err != nil {
		return "", fmt.Errorf("whatsapp template submit: encode request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/message_templates", a.BaseURL, a.APIVersion, a.BusinessID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("whatsapp template submit: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp template submit: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	var parsed createTemplateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("whatsapp template submit: decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("whatsapp template submit: provider rejected (%d): %s", parsed.Error.Code, parsed.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || parsed.ID == "" {
		return "", fmt.Errorf("whatsapp template submit: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return parsed.ID, nil
}

type fetchStatusResponse struct {
	Status         string `json:"status"`
	RejectedReason string `json:"rejected_reason"`
}

// FetchStatus implements the whatsapp package's TemplateStatusFetcher
// interface, polling the provider's template resource directly rather
// than waiting for a webhook push.
func (a *ProviderAPIAdapter) FetchStatus(ctx context.Context, providerID string) (domain.WhatsAppTemplateStatus, string, error) {
	url := fmt.Sprintf("%s/%s/%s?fields=status,rejected_reason", a.BaseURL, a.APIVersion, providerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", fmt.Errorf("whatsapp template status: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.AccessToken)

	resp, err := a.HTTPClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("whatsapp template status: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", fmt.Errorf("whatsapp template status: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed fetchStatusResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", "", fmt.Errorf("whatsapp template status: decode response: %w", err)
	}

	return mapProviderTemplateStatus(parsed.Status), parsed.RejectedReason, nil
}

func mapProviderTemplateStatus(providerStatus string) domain.WhatsAppTemplateStatus {
	switch providerStatus {
	case "APPROVED":
		return domain.TemplateApproved
	case "REJECTED":
		return domain.TemplateRejected
	case "DISABLED":
		return domain.TemplateDisabled
	case "PAUSED", "FLAGGED":
		return domain.TemplatePaused
	default:
		return domain.TemplatePending
	}
}
