// Package main provides a simple CLI client for chatting with a copilot session.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawrencecchen/autobuild/internal/domain"
	"github.com/lawrencecchen/autobuild/internal/hub"
)

// BaseMessage contains the field shared by all server frames.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client talks to one session over HTTP and follows its UI over WebSocket.
type Client struct {
	baseURL   string
	sessionID string
	http      *http.Client
	conn      *websocket.Conn
	done      chan struct{}
}

// NewClient creates a session and connects to its update stream.
func NewClient(baseURL, sessionID string) (*Client, error) {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		done:    make(chan struct{}),
	}

	var sess domain.Session
	if err := c.post("/v1/sessions", domain.CreateSessionRequest{SessionID: sessionID}, &sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	c.sessionID = sess.SessionID

	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/v1/sessions/" + c.sessionID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	c.conn = conn
	return c, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

func (c *Client) post(path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := c.http.Post(c.baseURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e map[string]string
		_ = json.Unmarshal(data, &e)
		return fmt.Errorf("%s: %s", resp.Status, e["error"])
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func (c *Client) sessionPath(suffix string) string {
	return "/v1/sessions/" + c.sessionID + suffix
}

// Execute runs one input line: a command or a chat message.
func (c *Client) Execute(input string) error {
	cmd, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "/approve", "/reject":
		decision := strings.TrimPrefix(cmd, "/")
		return c.post("/v1/confirmations/"+rest+"/decide", domain.ConfirmationDecisionRequest{Decision: decision}, nil)

	case "/run":
		id, sql, _ := strings.Cut(rest, " ")
		entryID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return fmt.Errorf("usage: /run UI_ENTRY_ID SQL")
		}
		return c.post(c.sessionPath("/queries/run"), domain.RunQueryRequest{UIEntryID: entryID, SQL: sql}, nil)

	case "/select":
		componentID, rows, _ := strings.Cut(rest, " ")
		req := domain.SelectRowsRequest{ComponentID: componentID}
		if rows != "" {
			if err := json.Unmarshal([]byte(rows), &req.Rows); err != nil {
				return fmt.Errorf("usage: /select COMPONENT_ID [JSON_ROWS]")
			}
		}
		return c.post(c.sessionPath("/selection"), req, nil)

	case "/buy":
		fields := strings.Fields(rest)
		if len(fields) != 3 {
			return fmt.Errorf("usage: /buy SYMBOL PRICE AMOUNT")
		}
		price, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return fmt.Errorf("invalid price: %w", err)
		}
		amount, err := strconv.Atoi(fields[2])
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		return c.post(c.sessionPath("/purchases"), domain.ConfirmPurchaseRequest{Symbol: fields[0], Price: price, Amount: amount}, nil)
	}

	var resp domain.SubmitMessageResponse
	if err := c.post(c.sessionPath("/messages"), domain.SubmitMessageRequest{Content: input}, &resp); err != nil {
		return err
	}
	fmt.Printf("Turn started: %s\n", resp.TurnID)
	return nil
}

// ReadMessages reads and prints UI updates from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}

			var base BaseMessage
			if err := json.Unmarshal(data, &base); err != nil {
				log.Printf("Unmarshal error: %v", err)
				continue
			}

			switch base.Type {
			case hub.TypeSnapshot:
				var msg hub.SnapshotMessage
				if err := json.Unmarshal(data, &msg); err == nil {
					for _, entry := range msg.UI {
						printEntry(entry)
					}
				}
			case hub.TypeUIUpdate:
				var msg hub.UIUpdateMessage
				if err := json.Unmarshal(data, &msg); err == nil && msg.Entry.Final {
					printEntry(msg.Entry)
				}
			case hub.TypeTurnSettled:
				var msg hub.TurnSettledMessage
				if err := json.Unmarshal(data, &msg); err == nil {
					fmt.Printf("\n[turn %s %s]\n> ", msg.TurnID, msg.Status)
				}
			}
		}
	}
}

func printEntry(entry domain.UIEntry) {
	fmt.Printf("\n[%d %s] %s\n", entry.ID, entry.Display.Kind, entry.Display.Text)
	if len(entry.Display.Data) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, entry.Display.Data, "", "  "); err == nil {
			fmt.Println(pretty.String())
		}
	}
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "Copilot server address")
	sessionID := flag.String("session", "", "Session ID to create (generated when empty)")
	flag.Parse()

	log.SetFlags(log.Ltime)

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr, *sessionID)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	fmt.Printf("Session established: %s\n", client.sessionID)
	fmt.Println("\nType a message and press Enter to send.")
	fmt.Println("Commands: /approve ID, /reject ID, /run UI_ENTRY_ID SQL, /select COMPONENT_ID [ROWS], /buy SYMBOL PRICE AMOUNT, /quit")
	fmt.Println()

	// Start reading messages in background
	go client.ReadMessages()

	// Handle Ctrl+C
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	// Read user input
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			input := strings.TrimSpace(scanner.Text())
			if input == "" {
				continue
			}

			if input == "/quit" {
				fmt.Println("Bye!")
				return
			}

			if err := client.Execute(input); err != nil {
				log.Printf("Send error: %v", err)
			}
		}
	}
}
