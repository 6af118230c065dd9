package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	authsvc "campus-market/internal/application/auth"
	convsvc "campus-market/internal/application/conversations"
	"campus-market/internal/application/profiles"
	"campus-market/internal/domain"
	"campus-market/internal/infrastructure/realtime"
	"campus-market/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gatewayEnv struct {
	srv     *httptest.Server
	gw      *Gateway
	convs   *convsvc.Service
	tickets *authsvc.Tickets
	buyer   domain.Profile
	seller  domain.Profile
	conv    *convsvc.ConversationView
}

func setupGateway(t *testing.T) gatewayEnv {
	t.Helper()
	db := testutil.NewDB(t)
	rdb, _ := testutil.NewRedis(t)
	convs := &convsvc.Service{
		DB:       db,
		Profiles: &profiles.Service{DB: db},
		Store:    testutil.NewMemoryStore(),
		Bucket:   "message-images",
		Broker:   &realtime.RedisBroker{Rdb: rdb},
	}
	tickets := &authsvc.Tickets{Secret: []byte("gateway-secret")}
	seller := testutil.CreateProfile(t, db, "Sam", "Seller")
	buyer := testutil.CreateProfile(t, db, "Bea", "Buyer")
	listing := testutil.CreateListing(t, db, seller.ID, nil)
	conv, err := convs.GetOrCreateConversation(context.Background(), buyer.ID, listing.ID)
	require.NoError(t, err)

	gw := &Gateway{Conversations: convs, Tickets: tickets}
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(func() {
		gw.Shutdown()
		srv.Close()
	})
	return gatewayEnv{srv: srv, gw: gw, convs: convs, tickets: tickets, buyer: buyer, seller: seller, conv: conv}
}

func (e gatewayEnv) url(conversationID, ticket string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws/conversations/" + conversationID + "?ticket=" + ticket
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var f frame
	require.NoError(t, json.Unmarshal(raw, &f))
	return f
}

func TestGateway_StreamsMessages(t *testing.T) {
	e := setupGateway(t)
	ticket, _, err := e.tickets.Issue(e.seller.ID)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(e.url(e.conv.ID.String(), ticket), nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, "subscribed", readFrame(t, conn).Type)
	assert.Equal(t, 1, e.gw.ActiveConnections())

	sent, err := e.convs.SendMessage(context.Background(), e.buyer.ID, e.conv.ID, "still for sale?", nil)
	require.NoError(t, err)

	f := readFrame(t, conn)
	assert.Equal(t, "message", f.Type)
	require.NotNil(t, f.Message)
	assert.Equal(t, sent.ID, f.Message.ID)
	assert.Equal(t, "Bea Buyer", f.Message.SenderName)
	assert.False(t, f.Message.IsFromCurrentUser)
}

func TestGateway_RejectsBadTicket(t *testing.T) {
	e := setupGateway(t)

	_, resp, err := websocket.DefaultDialer.Dial(e.url(e.conv.ID.String(), "garbage"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGateway_RejectsOutsider(t *testing.T) {
	e := setupGateway(t)
	ticket, _, err := e.tickets.Issue(e.conv.ListingID)
	require.NoError(t, err)

	_, resp, err := websocket.DefaultDialer.Dial(e.url(e.conv.ID.String(), ticket), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGateway_ShutdownClosesSockets(t *testing.T) {
	e := setupGateway(t)
	ticket, _, err := e.tickets.Issue(e.buyer.ID)
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(e.url(e.conv.ID.String(), ticket), nil)
	require.NoError(t, err)
	defer conn.Close()
	readFrame(t, conn)

	e.gw.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), err.Error())
	assert.Eventually(t, func() bool { return e.gw.ActiveConnections() == 0 }, 2*time.Second, 20*time.Millisecond)
}

func TestGateway_Health(t *testing.T) {
	e := setupGateway(t)
	resp, err := http.Get(e.srv.URL + "/realtime/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]int
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 0, out["connections"])
}
