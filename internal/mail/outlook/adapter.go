package outlook

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/users"

	"github.com/webfolio/mail-infra/internal/mail"
)

// Adapter implements mail.MailSource for Outlook/Microsoft Graph
type Adapter struct {
	client *msgraphsdk.GraphServiceClient
}

// New creates a new Outlook adapter from a Graph access token
func New(accessToken string) (*Adapter, error) {
	cred := &staticTokenCredential{token: accessToken}

	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, []string{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Graph client: %w", err)
	}

	return &Adapter{client: client}, nil
}

// ListRecentMessageIDs lists recent message refs. Graph has no Gmail-style
// search queries; the query argument is passed through as a $search term
// when non-empty.
func (a *Adapter) ListRecentMessageIDs(ctx context.Context, query string, max int64) ([]mail.MessageRef, error) {
	top := int32(max)
	params := &users.ItemMessagesRequestBuilderGetQueryParameters{
		Top:    &top,
		Select: []string{"id", "conversationId"},
	}
	if query != "" {
		search := fmt.Sprintf("%q", query)
		params.Search = &search
	}

	result, err := a.client.Me().Messages().Get(ctx, &users.ItemMessagesRequestBuilderGetRequestConfiguration{
		QueryParameters: params,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %v", mail.ErrProviderUnavailable, err)
	}

	var refs []mail.MessageRef
	for _, m := range result.GetValue() {
		ref := mail.MessageRef{}
		if id := m.GetId(); id != nil {
			ref.ID = *id
		}
		if convID := m.GetConversationId(); convID != nil {
			ref.ThreadID = *convID
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// FetchThread fetches all messages sharing a conversation id
func (a *Adapter) FetchThread(ctx context.Context, threadID string) ([]mail.RawMessage, error) {
	filter := fmt.Sprintf("conversationId eq '%s'", threadID)
	result, err := a.client.Me().Messages().Get(ctx, &users.ItemMessagesRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemMessagesRequestBuilderGetQueryParameters{
			Filter: &filter,
			Select: []string{"id", "conversationId", "subject", "from", "toRecipients", "bodyPreview", "body", "isRead", "flag", "receivedDateTime", "internetMessageHeaders"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: fetch conversation %s: %v", mail.ErrProviderUnavailable, threadID, err)
	}

	var msgs []mail.RawMessage
	for _, m := range result.GetValue() {
		msgs = append(msgs, convert(m))
	}
	return msgs, nil
}

// SendMessage sends msg inside the given conversation, or starts a new one
// when threadID is empty. Graph does not return the sent id from sendMail,
// so the draft id is used either way.
func (a *Adapter) SendMessage(ctx context.Context, threadID string, msg mail.OutgoingMessage) (string, error) {
	if threadID == "" {
		created, err := a.client.Me().Messages().Post(ctx, draftFrom(msg), nil)
		if err != nil {
			return "", fmt.Errorf("%w: create draft: %v", mail.ErrSendFailed, err)
		}
		return a.sendDraft(ctx, created)
	}

	// Replies must be anchored to a message of the conversation; a bare
	// draft would start a new one. createReply on the latest message keeps
	// the conversationId.
	existing, err := a.FetchThread(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("%w: resolve conversation %s: %v", mail.ErrSendFailed, threadID, err)
	}
	if len(existing) == 0 {
		return "", fmt.Errorf("%w: conversation %s has no messages", mail.ErrSendFailed, threadID)
	}
	anchor := existing[len(existing)-1].ID

	replyBody := users.NewItemMessagesItemCreateReplyPostRequestBody()
	replyBody.SetMessage(draftFrom(msg))

	created, err := a.client.Me().Messages().ByMessageId(anchor).CreateReply().Post(ctx, replyBody, nil)
	if err != nil {
		return "", fmt.Errorf("%w: create reply draft: %v", mail.ErrSendFailed, err)
	}
	return a.sendDraft(ctx, created)
}

func (a *Adapter) sendDraft(ctx context.Context, draft models.Messageable) (string, error) {
	id := ""
	if draft.GetId() != nil {
		id = *draft.GetId()
	}

	if err := a.client.Me().Messages().ByMessageId(id).Send().Post(ctx, nil); err != nil {
		return "", fmt.Errorf("%w: send draft: %v", mail.ErrSendFailed, err)
	}
	return id, nil
}

// draftFrom builds the Graph message for an outgoing send
func draftFrom(msg mail.OutgoingMessage) *models.Message {
	draft := models.NewMessage()
	draft.SetSubject(&msg.Subject)

	body := models.NewItemBody()
	contentType := models.HTML_BODYTYPE
	body.SetContentType(&contentType)
	body.SetContent(&msg.HTMLBody)
	draft.SetBody(body)

	recipient := models.NewRecipient()
	addr := models.NewEmailAddress()
	addr.SetAddress(&msg.To)
	recipient.SetEmailAddress(addr)
	draft.SetToRecipients([]models.Recipientable{recipient})

	return draft
}

// ModifyLabels maps the Gmail-style label vocabulary onto Graph message
// properties: UNREAD onto isRead, STARRED onto the follow-up flag.
func (a *Adapter) ModifyLabels(ctx context.Context, messageIDs []string, add, remove []string) error {
	patch := models.NewMessage()
	for _, l := range remove {
		if l == mail.LabelUnread {
			read := true
			patch.SetIsRead(&read)
		}
		if l == mail.LabelStarred {
			patch.SetFlag(flagWith(models.NOTFLAGGED_FOLLOWUPFLAGSTATUS))
		}
	}
	for _, l := range add {
		if l == mail.LabelUnread {
			unread := false
			patch.SetIsRead(&unread)
		}
		if l == mail.LabelStarred {
			patch.SetFlag(flagWith(models.FLAGGED_FOLLOWUPFLAGSTATUS))
		}
	}

	for _, id := range messageIDs {
		if _, err := a.client.Me().Messages().ByMessageId(id).Patch(ctx, patch, nil); err != nil {
			return fmt.Errorf("%w: patch message %s: %v", mail.ErrProviderUnavailable, id, err)
		}
	}
	return nil
}

// TrashThread moves every message of a conversation to Deleted Items
func (a *Adapter) TrashThread(ctx context.Context, threadID string) error {
	msgs, err := a.FetchThread(ctx, threadID)
	if err != nil {
		return err
	}

	dest := "deleteditems"
	for _, m := range msgs {
		moveBody := users.NewItemMessagesItemMovePostRequestBody()
		moveBody.SetDestinationId(&dest)
		if _, err := a.client.Me().Messages().ByMessageId(m.ID).Move().Post(ctx, moveBody, nil); err != nil {
			return fmt.Errorf("%w: move message %s: %v", mail.ErrProviderUnavailable, m.ID, err)
		}
	}
	return nil
}

// Profile returns the signed-in mailbox address
func (a *Adapter) Profile(ctx context.Context) (string, error) {
	me, err := a.client.Me().Get(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("%w: get profile: %v", mail.ErrProviderUnavailable, err)
	}
	if addr := me.GetMail(); addr != nil {
		return *addr, nil
	}
	if upn := me.GetUserPrincipalName(); upn != nil {
		return *upn, nil
	}
	return "", nil
}

// convert maps a Graph message onto the provider-agnostic raw form.
// Graph serves the body as one decoded HTML payload, so it becomes a
// single base64url leaf part for the normalizer.
func convert(m models.Messageable) mail.RawMessage {
	raw := mail.RawMessage{}

	if id := m.GetId(); id != nil {
		raw.ID = *id
	}
	if convID := m.GetConversationId(); convID != nil {
		raw.ThreadID = *convID
	}
	if preview := m.GetBodyPreview(); preview != nil {
		raw.Snippet = *preview
	}
	if rcvd := m.GetReceivedDateTime(); rcvd != nil {
		raw.InternalDate = rcvd.UnixMilli()
	}

	if isRead := m.GetIsRead(); isRead != nil && !*isRead {
		raw.LabelIDs = append(raw.LabelIDs, mail.LabelUnread)
	}
	if flag := m.GetFlag(); flag != nil {
		if status := flag.GetFlagStatus(); status != nil && *status == models.FLAGGED_FOLLOWUPFLAGSTATUS {
			raw.LabelIDs = append(raw.LabelIDs, mail.LabelStarred)
		}
	}

	if headers := m.GetInternetMessageHeaders(); headers != nil {
		for _, h := range headers {
			if h.GetName() != nil && h.GetValue() != nil {
				raw.Headers = append(raw.Headers, mail.Header{Name: *h.GetName(), Value: *h.GetValue()})
			}
		}
	}

	// Graph omits From/To from internetMessageHeaders on some payloads;
	// synthesize them from the structured fields.
	if from := m.GetFrom(); from != nil {
		if addr := from.GetEmailAddress(); addr != nil && addr.GetAddress() != nil {
			value := *addr.GetAddress()
			if addr.GetName() != nil && *addr.GetName() != "" {
				value = fmt.Sprintf("%s <%s>", *addr.GetName(), *addr.GetAddress())
			}
			raw.Headers = append(raw.Headers, mail.Header{Name: "From", Value: value})
		}
	}
	if to := m.GetToRecipients(); len(to) > 0 {
		if addr := to[0].GetEmailAddress(); addr != nil && addr.GetAddress() != nil {
			raw.Headers = append(raw.Headers, mail.Header{Name: "To", Value: *addr.GetAddress()})
		}
	}
	if subject := m.GetSubject(); subject != nil {
		raw.Headers = append(raw.Headers, mail.Header{Name: "Subject", Value: *subject})
	}

	if body := m.GetBody(); body != nil && body.GetContent() != nil {
		mimeType := "text/html"
		if ct := body.GetContentType(); ct != nil && *ct == models.TEXT_BODYTYPE {
			mimeType = "text/plain"
		}
		raw.Body = &mail.BodyPart{
			MimeType: mimeType,
			Data:     base64.RawURLEncoding.EncodeToString([]byte(*body.GetContent())),
		}
	}

	return raw
}

func flagWith(status models.FollowupFlagStatus) models.FollowupFlagable {
	flag := models.NewFollowupFlag()
	flag.SetFlagStatus(&status)
	return flag
}

// staticTokenCredential implements the Azure credential interface
type staticTokenCredential struct {
	token string
}

func (c *staticTokenCredential) GetToken(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{
		Token:     c.token,
		ExpiresOn: time.Now().Add(1 * time.Hour),
	}, nil
}
