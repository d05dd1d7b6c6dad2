package handlers

import (
	"log"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/suilotto/zkgateway/auth"
)

// EventsHandler streams authentication state transitions for a login attempt
// over a WebSocket. The current state is sent immediately on connect, then
// every transition until the client disconnects or the flow reaches a
// terminal state.
func EventsHandler(upgrader *websocket.Upgrader, flow *auth.Flow) echo.HandlerFunc {
	return func(c echo.Context) error {
		sessionID := c.Param("session_id")

		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			return err
		}
		defer conn.Close()

		events := flow.Subscribe(sessionID)
		defer flow.Unsubscribe(sessionID, events)

		current := auth.StateEvent{SessionID: sessionID, State: flow.State(sessionID)}
		if err := conn.WriteJSON(current); err != nil {
			return nil
		}
		if current.State == auth.StateComplete || current.State == auth.StateError {
			return nil
		}

		// Drain client frames so close messages are noticed.
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if err := conn.WriteJSON(event); err != nil {
					log.Printf("WebSocket write failed for session %s: %v", sessionID, err)
					return nil
				}
				if event.State == auth.StateComplete || event.State == auth.StateError {
					return nil
				}
			case <-done:
				return nil
			}
		}
	}
}
