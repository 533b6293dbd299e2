package main

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nidhogg/dinobot/internal/catalog"
	"github.com/nidhogg/dinobot/internal/sheetstate"
)

type client struct {
	server  string
	subject string
	topic   string
	http    *http.Client
	state   sheetstate.Store
}

var (
	serverURL string
	subject   string
	topic     string
	statePath string
)

var (
	botLabel   = color.New(color.FgCyan, color.Bold)
	matchLabel = color.New(color.FgGreen)
	exTag      = color.New(color.FgYellow)
	errText    = color.New(color.FgRed)
	dim        = color.New(color.Faint)
)

var rootCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to DinoBot about a study sheet",
	Long:  "An interactive client for a DinoBot server: ask questions, browse the image catalog and match photos.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := &client{
			server:  strings.TrimRight(serverURL, "/"),
			subject: subject,
			topic:   topic,
			http:    &http.Client{Timeout: 65 * time.Second},
			state:   sheetstate.NewFileStore(statePath),
		}
		c.repl()
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "server", "http://localhost:3000", "DinoBot server URL")
	rootCmd.Flags().StringVar(&subject, "subject", "Chimie", "study sheet subject")
	rootCmd.Flags().StringVar(&topic, "topic", "Acides et bases", "study sheet topic")
	rootCmd.Flags().StringVar(&statePath, "state", sheetstate.DefaultPath(), "file holding the sheet image")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (c *client) repl() {
	fmt.Println("DinoBot CLI")
	dim.Printf("Server: %s | Fiche: %s / %s\n", c.server, c.subject, c.topic)
	fmt.Println("Type 'exit' or 'quit' to leave. Anything else is sent to DinoBot.")
	dim.Println("Commands: /images [query], /match <text>, /photo <file>, /exercise <file>, /image, /forget")
	fmt.Println("---")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		cmd, arg, _ := strings.Cut(input, " ")
		arg = strings.TrimSpace(arg)
		switch cmd {
		case "/images":
			c.listImages(arg)
		case "/match":
			c.matchText(arg)
		case "/photo":
			c.searchPhoto(arg, false)
		case "/exercise":
			c.searchPhoto(arg, true)
		case "/image":
			c.showImage()
		case "/forget":
			if err := c.state.Clear(); err != nil {
				printError("Failed to clear image: %v", err)
				continue
			}
			fmt.Println("Sheet image cleared.")
		default:
			c.chat(input)
		}
	}
}

// do sends a request and decodes a JSON response into out.
func (c *client) do(method, path string, body, out interface{}) bool {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.server+path, r)
	if err != nil {
		printError("Bad request: %v", err)
		return false
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		printError("Request failed: %v", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		printError("Failed to parse response: %v", err)
		return false
	}
	return true
}

func (c *client) listImages(query string) {
	var resp struct {
		Images []catalog.ImageRecord `json:"images"`
	}
	if !c.do(http.MethodGet, "/api/media?q="+url.QueryEscape(query), nil, &resp) {
		return
	}
	if len(resp.Images) == 0 {
		fmt.Println("No images.")
		return
	}
	for _, im := range resp.Images {
		printRecord(im)
	}
}

func (c *client) matchText(text string) {
	var resp struct {
		Image *catalog.ImageRecord `json:"image"`
	}
	if !c.do(http.MethodPost, "/api/exercise-image", catalog.Query{Title: text}, &resp) {
		return
	}
	if resp.Image == nil {
		fmt.Println("No matching image.")
		return
	}
	printRecord(*resp.Image)
	if err := c.state.Set(*resp.Image); err != nil {
		printError("Failed to remember image: %v", err)
		return
	}
	fmt.Println("Attached to the sheet.")
}

func (c *client) searchPhoto(path string, exercisesOnly bool) {
	if path == "" {
		printError("Usage: /photo <file> or /exercise <file>")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		printError("Failed to read %s: %v", path, err)
		return
	}
	body := map[string]string{"imageBase64": base64.StdEncoding.EncodeToString(data)}

	var resp struct {
		Uploaded  string                `json:"uploaded"`
		Matched   *catalog.ImageRecord  `json:"matched"`
		Exercises []catalog.ImageRecord `json:"exercises"`
	}
	endpoint := "/api/image-search"
	if exercisesOnly {
		endpoint = "/api/exercise-search"
	}
	if !c.do(http.MethodPost, endpoint, body, &resp) {
		return
	}
	fmt.Printf("Uploaded as %s\n", resp.Uploaded)
	if resp.Matched == nil {
		fmt.Println("No identical catalog image.")
	} else {
		matchLabel.Print("Match: ")
		printRecord(*resp.Matched)
	}
	if exercisesOnly {
		fmt.Println("Exercises:")
		for _, im := range resp.Exercises {
			printRecord(im)
		}
	}
}

func (c *client) showImage() {
	rec, err := c.state.Get()
	if err != nil {
		printError("Failed to read image: %v", err)
		return
	}
	if rec == nil {
		fmt.Println("No image attached to the sheet.")
		return
	}
	printRecord(*rec)
}

func (c *client) chat(message string) {
	var resp struct {
		Response string `json:"response"`
	}
	if !c.do(http.MethodPost, "/api/chat-fiche", map[string]string{
		"message": message,
		"subject": c.subject,
		"topic":   c.topic,
	}, &resp) {
		return
	}
	fmt.Printf("%s %s\n", botLabel.Sprint("[DinoBot]"), resp.Response)
}

func printRecord(r catalog.ImageRecord) {
	fmt.Printf("  %s  %s", r.ID, r.URL)
	if r.Caption != "" {
		dim.Printf(" - %s", r.Caption)
	}
	if r.HasExercise() {
		exTag.Printf(" [%s]", r.AssociatedExercise.ID)
	}
	fmt.Println()
}

func printError(format string, args ...interface{}) {
	errText.Fprintf(os.Stderr, format+"\n", args...)
}
