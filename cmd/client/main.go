// staffchat-client is a line-oriented terminal client for the chat server.
//
// Commands:
//
//	/register <user> <pass> [full name;department;position]
//	/login <user> <pass>
//	/logout
//	/list
//	/search <query>
//	/msg <user> <text>
//	/quit
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/NicolasHaas/staffchat/pkg/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:12345", "server address")
	flag.Parse()

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	fmt.Println("connected to", *addr)

	// Server-to-client pump. Deliveries arrive at any time, so this runs
	// independently of the prompt loop.
	go func() {
		for {
			f, err := protocol.ReadFrame(conn)
			if err != nil {
				fmt.Println("\rdisconnected:", err)
				os.Exit(0)
			}
			printFrame(f)
			fmt.Print("> ")
		}
	}()

	in := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for in.Scan() {
		line := strings.TrimSpace(in.Text())
		if line == "" {
			fmt.Print("> ")
			continue
		}
		f, quit := parseCommand(line)
		if quit {
			return
		}
		if f != nil {
			if err := protocol.WriteFrame(conn, f); err != nil {
				fmt.Fprintf(os.Stderr, "send: %v\n", err)
				os.Exit(1)
			}
		}
		fmt.Print("> ")
	}
}

func parseCommand(line string) (f *protocol.Frame, quit bool) {
	cmd, rest, _ := strings.Cut(line, " ")
	switch cmd {
	case "/register":
		args := strings.SplitN(rest, " ", 3)
		if len(args) < 2 {
			fmt.Println("usage: /register <user> <pass> [full name;department;position]")
			return nil, false
		}
		reg := &protocol.Register{Username: args[0], Password: args[1]}
		if len(args) == 3 {
			profile := strings.SplitN(args[2], ";", 3)
			reg.FullName = strings.TrimSpace(profile[0])
			if len(profile) > 1 {
				reg.Department = strings.TrimSpace(profile[1])
			}
			if len(profile) > 2 {
				reg.Position = strings.TrimSpace(profile[2])
			}
		}
		return &protocol.Frame{Register: reg}, false

	case "/login":
		args := strings.Fields(rest)
		if len(args) != 2 {
			fmt.Println("usage: /login <user> <pass>")
			return nil, false
		}
		return &protocol.Frame{Login: &protocol.Login{Username: args[0], Password: args[1]}}, false

	case "/logout":
		fmt.Println("logged out")
		return &protocol.Frame{Logout: &protocol.Logout{}}, false

	case "/list":
		return &protocol.Frame{UserListRequest: &protocol.UserListRequest{}}, false

	case "/search":
		return &protocol.Frame{Search: &protocol.Search{Query: rest}}, false

	case "/msg":
		to, text, ok := strings.Cut(rest, " ")
		if !ok || strings.TrimSpace(text) == "" {
			fmt.Println("usage: /msg <user> <text>")
			return nil, false
		}
		return &protocol.Frame{SendMessage: &protocol.SendMessage{To: to, Text: text}}, false

	case "/quit":
		return nil, true

	default:
		fmt.Println("unknown command:", cmd)
		return nil, false
	}
}

func printFrame(f *protocol.Frame) {
	switch {
	case f.Deliver != nil:
		ts := time.Unix(f.Deliver.Timestamp, 0).Format("15:04:05")
		fmt.Printf("\r[%s] %s: %s\n", ts, f.Deliver.From, f.Deliver.Text)
	case f.UserList != nil:
		fmt.Printf("\ronline users (%d):\n", len(f.UserList.Users))
		printEntries(f.UserList.Users)
	case f.SearchResults != nil:
		fmt.Printf("\rsearch results (%d):\n", len(f.SearchResults.Users))
		printEntries(f.SearchResults.Users)
	case f.OK != nil:
		fmt.Printf("\rok: %s %s\n", f.OK.Op, f.OK.Detail)
	case f.Error != nil:
		fmt.Printf("\rerror %d: %s\n", f.Error.Code, f.Error.Message)
	default:
		fmt.Printf("\runexpected frame: %s\n", f.Kind())
	}
}

func printEntries(users []protocol.UserEntry) {
	for _, u := range users {
		status := "offline"
		if u.Online {
			status = "online"
		}
		fmt.Printf("  %-16s %s | %s | %s | %s\n", u.Username, u.FullName, u.Department, u.Position, status)
	}
}
