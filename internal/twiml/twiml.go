package twiml

import (
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"
)

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

// Response is a TwiML document. Verbs execute in the order they were added.
type Response struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any
}

// Say speaks text with the provider's built-in voice.
type Say struct {
	XMLName xml.Name `xml:"Say"`
	Text    string   `xml:",chardata"`
}

// Play streams an audio file to the caller.
type Play struct {
	XMLName xml.Name `xml:"Play"`
	URL     string   `xml:",chardata"`
}

// Gather captures caller speech and posts the result to Action.
type Gather struct {
	XMLName       xml.Name `xml:"Gather"`
	Input         string   `xml:"input,attr"`
	Action        string   `xml:"action,attr"`
	Timeout       string   `xml:"timeout,attr,omitempty"`
	SpeechTimeout string   `xml:"speechTimeout,attr,omitempty"`
	Verbs         []any
}

// Redirect transfers control to another webhook.
type Redirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr,omitempty"`
	URL     string   `xml:",chardata"`
}

// Hangup ends the call.
type Hangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

// New returns an empty TwiML response.
func New() *Response {
	return &Response{}
}

// Say appends a Say verb.
func (r *Response) Say(text string) *Response {
	r.Verbs = append(r.Verbs, Say{Text: text})
	return r
}

// Play appends a Play verb.
func (r *Response) Play(url string) *Response {
	r.Verbs = append(r.Verbs, Play{URL: url})
	return r
}

// GatherSpeech appends a speech-input Gather posting to action, with nested
// verbs spoken while listening.
func (r *Response) GatherSpeech(action string, timeoutSeconds int, verbs ...any) *Response {
	gather := Gather{
		Input:         "speech",
		Action:        action,
		SpeechTimeout: "auto",
		Verbs:         verbs,
	}
	if timeoutSeconds > 0 {
		gather.Timeout = strconv.Itoa(timeoutSeconds)
	}
	r.Verbs = append(r.Verbs, gather)
	return r
}

// Redirect appends a Redirect verb.
func (r *Response) Redirect(url string) *Response {
	r.Verbs = append(r.Verbs, Redirect{URL: url, Method: "POST"})
	return r
}

// Hangup appends a Hangup verb.
func (r *Response) Hangup() *Response {
	r.Verbs = append(r.Verbs, Hangup{})
	return r
}

// Render serializes the document with the XML declaration Twilio expects.
func (r *Response) Render() (string, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("twiml: marshal response: %w", err)
	}
	return xmlHeader + string(body), nil
}

// Write renders the document onto an HTTP response.
func (r *Response) Write(w http.ResponseWriter) error {
	body, err := r.Render()
	if err != nil {
		return err
	}
	w.Header().Set("Content-Type", "application/xml")
	_, err = w.Write([]byte(body))
	return err
}
