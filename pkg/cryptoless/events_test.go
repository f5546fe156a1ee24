package cryptoless

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/0xfullStack/Cryptoless/pkg/signer"
)

// newChannelServer replies to every subscribe message with a single frame
// carrying data for the subscribed scope.
func newChannelServer(t *testing.T, data map[string]interface{}) *httptest.Server {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_token") != testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var msg struct {
				Event string `json:"event"`
				Data  struct {
					ID    string   `json:"id"`
					Scope []string `json:"scope"`
				} `json:"data"`
			}
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if msg.Event != "subscribe" || len(msg.Data.Scope) != 1 {
				continue
			}
			scope := msg.Data.Scope[0]
			//nolint
			conn.WriteJSON(map[string]interface{}{
				"event": "receive " + scope,
				"id":    msg.Data.ID,
				"data":  map[string]interface{}{"data": data[scope]},
			})
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestSubscribeEvents(t *testing.T) {
	server := newChannelServer(t, map[string]interface{}{
		"holders": []map[string]string{
			{"id": "h1", "address": "0xa", "quantity": "1.5", "symbol": "eth", "networkCode": "eth"},
		},
		"instructions": []map[string]interface{}{
			{"id": "i1", "type": "transfer", "body": map[string]string{"to": "0xb"}, "status": 1},
		},
	})

	s, err := signer.NewIdentitySigner("secret")
	require.NoError(t, err)
	client, err := New(testToken, s, WithBaseURL(server.URL), WithSocketURL(server.URL))
	require.NoError(t, err)
	defer client.Disconnect()

	status, stop := client.WatchConnectionStatus()
	defer stop()
	require.False(t, <-status)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	holdersStream, err := client.SubscribeHolders(ctx)
	require.NoError(t, err)
	require.True(t, client.ConnectionStatus())
	require.True(t, <-status)

	holders, err := holdersStream.Next(ctx)
	require.NoError(t, err)
	require.Len(t, holders, 1)
	require.Equal(t, "h1", holders[0].ID)
	require.Equal(t, "1.5", holders[0].Quantity.String())

	instructionsStream, err := client.SubscribeInstructions(ctx)
	require.NoError(t, err)
	instructions, err := instructionsStream.Next(ctx)
	require.NoError(t, err)
	require.Len(t, instructions, 1)
	require.Equal(t, "0xb", instructions[0].Body["to"])

	require.NoError(t, client.Unsubscribe(ctx, HoldersEvent))
	_, err = holdersStream.Next(ctx)
	require.Error(t, err)

	client.Disconnect()
	require.False(t, <-status)
	require.False(t, client.ConnectionStatus())
}
