package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/parleylabs/parley/internal/config"
	"github.com/parleylabs/parley/internal/sessions"
	"github.com/parleylabs/parley/pkg/protocol"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "View and manage chat sessions on the running gateway",
	}
	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsResetCmd())
	return cmd
}

func sessionsListCmd() *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List active sessions",
		Run: func(cmd *cobra.Command, args []string) {
			resp, err := gatewayRPC(protocol.MethodSessionsList, nil)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if !resp.OK {
				fmt.Fprintf(os.Stderr, "Error: %s\n", rpcErrorMessage(resp))
				os.Exit(1)
			}

			payload, _ := resp.Payload.(map[string]interface{})
			raw, _ := json.Marshal(payload["sessions"])
			var infos []sessions.Info
			if err := json.Unmarshal(raw, &infos); err != nil {
				fmt.Fprintf(os.Stderr, "Error: parse sessions: %v\n", err)
				os.Exit(1)
			}

			if jsonOutput {
				data, _ := json.MarshalIndent(infos, "", "  ")
				fmt.Println(string(data))
				return
			}

			if len(infos) == 0 {
				fmt.Println("No active sessions.")
				return
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "SESSION\tTURNS\tTOKENS\tRUNNING\tLAST USED\n")
			for _, info := range infos {
				running := ""
				if info.Running {
					running = "yes"
				}
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
					info.ID, info.Turns, info.Tokens, running,
					info.LastUsed.Format("2006-01-02 15:04:05"))
			}
			tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func sessionsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset [session]",
		Short: "Clear a session's history",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			params, _ := json.Marshal(map[string]string{"session": args[0]})
			resp, err := gatewayRPC(protocol.MethodChatReset, params)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if !resp.OK {
				fmt.Fprintf(os.Stderr, "Error: %s\n", rpcErrorMessage(resp))
				os.Exit(1)
			}
			fmt.Printf("Session %s cleared.\n", args[0])
		},
	}
}

func rpcErrorMessage(resp *protocol.ResponseFrame) string {
	if resp.Error != nil {
		return resp.Error.Message
	}
	return "unknown error"
}

// gatewayRPC connects to the running gateway, authenticates, sends one
// RPC call, and returns the response.
func gatewayRPC(method string, params json.RawMessage) (*protocol.ResponseFrame, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	host := cfg.Server.Host
	if host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", host, cfg.Server.Port), Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("connect to gateway at %s (is it running? try: parley serve): %w", u.String(), err)
	}
	defer conn.Close()

	connectParams, _ := json.Marshal(map[string]interface{}{
		"token":    cfg.Server.Token,
		"protocol": protocol.ProtocolVersion,
	})
	connectReq := protocol.RequestFrame{
		Type:   protocol.FrameTypeRequest,
		ID:     "cli-connect",
		Method: protocol.MethodConnect,
		Params: connectParams,
	}
	if err := conn.WriteJSON(connectReq); err != nil {
		return nil, fmt.Errorf("send connect: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var connectResp protocol.ResponseFrame
	if err := conn.ReadJSON(&connectResp); err != nil {
		return nil, fmt.Errorf("read connect response: %w", err)
	}
	if !connectResp.OK {
		return nil, fmt.Errorf("connect failed: %s", rpcErrorMessage(&connectResp))
	}

	rpcReq := protocol.RequestFrame{
		Type:   protocol.FrameTypeRequest,
		ID:     "cli-rpc",
		Method: method,
		Params: params,
	}
	if err := conn.WriteJSON(rpcReq); err != nil {
		return nil, fmt.Errorf("send RPC: %w", err)
	}

	// Skip events, find the response with the matching ID.
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		frameType, _ := protocol.ParseFrameType(msg)
		if frameType == protocol.FrameTypeEvent {
			continue
		}

		var resp protocol.ResponseFrame
		if err := json.Unmarshal(msg, &resp); err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}
		if resp.ID == "cli-rpc" {
			return &resp, nil
		}
	}
}
