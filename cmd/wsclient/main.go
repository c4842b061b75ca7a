package main

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"go-admin-chat/internal/interfaces"

	"github.com/gorilla/websocket"
)

// 调试工具: 监听推送, 或在 JSON 帧和 hex/base64 之间转换
func main() {
	mode := flag.String("mode", "listen", "Mode: 'listen', 'encode' or 'decode'")
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket endpoint for listen mode")
	token := flag.String("token", "", "JWT used for listen mode")
	inputFormat := flag.String("in", "hex", "Input format for decode: 'hex' or 'base64'")
	outputFormat := flag.String("out", "hex", "Output format for encode: 'hex' or 'base64'")
	flag.Parse()

	var err error
	switch *mode {
	case "listen":
		err = listen(*addr, *token)
	case "encode", "decode":
		var input []byte
		input, err = io.ReadAll(os.Stdin)
		if err != nil {
			break
		}
		var out string
		if *mode == "encode" {
			out, err = encode(strings.TrimSpace(string(input)), *outputFormat)
		} else {
			out, err = decode(strings.TrimSpace(string(input)), *inputFormat)
		}
		if err == nil {
			fmt.Println(out)
		}
	default:
		err = fmt.Errorf("invalid mode: %s", *mode)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// 连接并打印收到的每一帧, stdin 的每一行作为一帧发出
func listen(addr, token string) error {
	if token == "" {
		return fmt.Errorf("-token is required for listen mode")
	}
	u, err := url.Parse(addr)
	if err != nil {
		return fmt.Errorf("invalid addr: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			pretty, err := prettyFrame(data)
			if err != nil {
				pretty = string(data)
			}
			fmt.Println(pretty)
		}
	}()

	go func() {
		lines, _ := io.ReadAll(os.Stdin)
		for _, line := range strings.Split(string(lines), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				conn.WriteMessage(websocket.TextMessage, []byte(line))
			}
		}
	}()

	select {
	case err := <-done:
		if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
			return nil
		}
		return err
	case <-interrupt:
		return conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
}

// 校验帧格式后编码
func encode(jsonInput, outputFormat string) (string, error) {
	var frame interfaces.Frame
	if err := json.Unmarshal([]byte(jsonInput), &frame); err != nil {
		return "", fmt.Errorf("input is not a frame: %w", err)
	}
	if frame.Event == "" {
		return "", fmt.Errorf("frame event is empty")
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return "", err
	}

	switch outputFormat {
	case "hex":
		return hex.EncodeToString(data), nil
	case "base64":
		return base64.StdEncoding.EncodeToString(data), nil
	}
	return "", fmt.Errorf("invalid output format: %s", outputFormat)
}

func decode(input, inputFormat string) (string, error) {
	var data []byte
	var err error
	switch inputFormat {
	case "hex":
		data, err = hex.DecodeString(input)
	case "base64":
		data, err = base64.StdEncoding.DecodeString(input)
	default:
		return "", fmt.Errorf("invalid input format: %s", inputFormat)
	}
	if err != nil {
		return "", fmt.Errorf("decoding %s input: %w", inputFormat, err)
	}
	return prettyFrame(data)
}

func prettyFrame(data []byte) (string, error) {
	var frame interfaces.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return "", err
	}
	out, err := json.MarshalIndent(frame, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
