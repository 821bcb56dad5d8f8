package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/KeviinDCV/NotionK4S/core/chat"
)

func listMessages(t *testing.T, token, channel string) []chat.Message {
	t.Helper()
	req, rec := newAuthRequest(http.MethodGet, "/v1/chat/"+channel+"/messages", token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET messages: code = %v; body %v", rec.Code, rec.Body.String())
	}
	var msgs []chat.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("unmarshaling messages: %v", err)
	}
	return msgs
}

func Test_chatApi_postAndList(t *testing.T) {
	mate := getUser(t, "alexdemo")
	token := getToken(t, mate)

	body := marshallObj(t, map[string]string{"body": "morning all"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/chat/"+chat.DefaultChannel+"/messages", token, body)
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("POST message: code = %v; body %v", rec.Code, rec.Body.String())
	}
	var posted chat.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &posted); err != nil {
		t.Fatalf("unmarshaling message: %v", err)
	}
	if posted.UserID != mate.ID {
		t.Errorf("UserID = %q, want the caller", posted.UserID)
	}
	if posted.Author.Name == "" {
		t.Error("author not joined on post")
	}

	// messages read oldest to newest, the new post last
	msgs := listMessages(t, token, chat.DefaultChannel)
	if len(msgs) < 2 {
		t.Fatalf("messages = %v, want the seeded one plus ours", msgs)
	}
	if msgs[len(msgs)-1].ID != posted.ID {
		t.Errorf("messages = %v, want the new post at the tail", msgs)
	}
	for i := 1; i < len(msgs); i++ {
		if msgs[i].CreatedAt.Before(msgs[i-1].CreatedAt) {
			t.Errorf("messages out of order at %d", i)
		}
	}
}

func Test_chatApi_post_invalid(t *testing.T) {
	token := getToken(t, getUser(t, "alexdemo"))

	body := marshallObj(t, map[string]string{"body": ""})
	req, rec := newAuthRequest(http.MethodPost, "/v1/chat/"+chat.DefaultChannel+"/messages", token, body)
	app.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("POST empty message: code = %v; body %v", rec.Code, rec.Body.String())
	}
}

func Test_chatApi_editAndDestroy(t *testing.T) {
	token := getToken(t, getUser(t, "alexdemo"))

	body := marshallObj(t, map[string]string{"body": "tpyo"})
	req, rec := newAuthRequest(http.MethodPost, "/v1/chat/"+chat.DefaultChannel+"/messages", token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST message: code = %v", rec.Code)
	}
	var posted chat.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &posted); err != nil {
		t.Fatalf("unmarshaling message: %v", err)
	}

	body = marshallObj(t, map[string]string{"body": "typo"})
	req, rec = newAuthRequest(http.MethodPut, "/v1/chat/"+chat.DefaultChannel+"/messages/"+posted.ID, token, body)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("PUT message: code = %v; body %v", rec.Code, rec.Body.String())
	}
	var edited chat.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &edited); err != nil {
		t.Fatalf("unmarshaling message: %v", err)
	}
	if edited.Body != "typo" {
		t.Errorf("Body = %q", edited.Body)
	}
	if edited.UserID != posted.UserID || edited.ChannelID != posted.ChannelID {
		t.Errorf("authoritative fields changed: %+v", edited)
	}

	req, rec = newAuthRequest(http.MethodDelete, "/v1/chat/"+chat.DefaultChannel+"/messages/"+posted.ID, token)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE message: code = %v", rec.Code)
	}

	tt := httpTest{wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "not found"})}
	req, rec = newAuthRequest(http.MethodPut, "/v1/chat/"+chat.DefaultChannel+"/messages/"+posted.ID, token, body)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
}
