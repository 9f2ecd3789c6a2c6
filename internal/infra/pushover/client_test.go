package pushover_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"home-setup/internal/domain"
	"home-setup/internal/infra/pushover"
)

func newServer(t *testing.T, status int, form *url.Values) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if form != nil {
			*form = r.PostForm
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_Notify(t *testing.T) {
	tests := []struct {
		name         string
		setup        domain.SetupCompleted
		opts         []pushover.Option
		wantTitle    string
		wantMessage  string
		wantPriority string
	}{
		{
			name:         "with receipt and floorplan",
			setup:        domain.SetupCompleted{SetupID: 7, UserID: 5, Username: "anna", PaymentType: domain.PaymentBasic, Rooms: 4, Devices: 2, HasFloorplan: true},
			wantTitle:    "Home setup #7",
			wantMessage:  "Setup completed for anna: plan Базовый, 4 rooms, 2 devices",
			wantPriority: "0",
		},
		{
			name:         "no floorplan, high priority",
			setup:        domain.SetupCompleted{UserID: 5, PaymentType: domain.PaymentMaximum, Devices: 1},
			opts:         []pushover.Option{pushover.WithPriority(1)},
			wantTitle:    "Home setup",
			wantMessage:  "Setup completed for user 5: plan Максимум, 0 rooms, 1 devices\nNo floorplan uploaded.",
			wantPriority: "1",
		},
		{
			name:         "emergency priority clamped",
			setup:        domain.SetupCompleted{UserID: 5, PaymentType: domain.PaymentEconomy, HasFloorplan: true},
			opts:         []pushover.Option{pushover.WithPriority(2)},
			wantTitle:    "Home setup",
			wantMessage:  "Setup completed for user 5: plan Экономный, 0 rooms, 0 devices",
			wantPriority: "1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var form url.Values
			server := newServer(t, http.StatusOK, &form)

			opts := append([]pushover.Option{pushover.WithEndpoint(server.URL)}, tt.opts...)
			client := pushover.NewClient("token", "user", opts...)
			if err := client.Notify(context.Background(), tt.setup); err != nil {
				t.Fatalf("Notify error: %v", err)
			}

			if got := form.Get("title"); got != tt.wantTitle {
				t.Errorf("title: got %q, want %q", got, tt.wantTitle)
			}
			if got := form.Get("message"); got != tt.wantMessage {
				t.Errorf("message: got %q, want %q", got, tt.wantMessage)
			}
			if got := form.Get("priority"); got != tt.wantPriority {
				t.Errorf("priority: got %q, want %q", got, tt.wantPriority)
			}
			if form.Get("token") != "token" || form.Get("user") != "user" {
				t.Errorf("credentials not sent: %v", form)
			}
		})
	}
}

func TestClient_NotifyWithoutCredentialsIsSilent(t *testing.T) {
	client := pushover.NewClient("", "", pushover.WithEndpoint("http://127.0.0.1:1"))
	if err := client.Notify(context.Background(), domain.SetupCompleted{UserID: 1}); err != nil {
		t.Errorf("Notify error: %v", err)
	}
}

func TestClient_NotifyError(t *testing.T) {
	server := newServer(t, http.StatusBadRequest, nil)

	client := pushover.NewClient("token", "user", pushover.WithEndpoint(server.URL))
	if err := client.Notify(context.Background(), domain.SetupCompleted{UserID: 1}); err == nil {
		t.Error("expected error for 400 response")
	}
}
