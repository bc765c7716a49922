package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/courier/pkg/account"
	"github.com/papercomputeco/courier/pkg/dialogue"
	"github.com/papercomputeco/courier/pkg/eventstream"
	"github.com/papercomputeco/courier/pkg/storage"
)

// PictureField is the multipart field carrying an uploaded picture.
const PictureField = "picture"

// DialogueResponse is the public view of a dialogue.
type DialogueResponse struct {
	ID        string         `json:"id"`
	Users     []UserResponse `json:"users"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// PictureLink points at the canonical bytes of a picture.
type PictureLink struct {
	Link string `json:"link"`
}

// MessageResponse is the public view of a message.
type MessageResponse struct {
	ID        string       `json:"id"`
	FromUser  UserResponse `json:"from_user"`
	Picture   PictureLink  `json:"picture"`
	IsEdited  bool         `json:"is_edited"`
	EditedAt  time.Time    `json:"edited_at"`
	CreatedAt time.Time    `json:"created_at"`
}

// CreateDialogueRequest names the other member of a pair dialogue.
type CreateDialogueRequest struct {
	Username string `json:"username" form:"username"`
}

// userCache resolves usernames once per request.
type userCache struct {
	driver storage.UserDriver
	users  map[string]*account.User
}

func newUserCache(driver storage.UserDriver, seed *account.User) *userCache {
	uc := &userCache{driver: driver, users: make(map[string]*account.User)}
	if seed != nil {
		uc.users[seed.Username] = seed
	}
	return uc
}

func (uc *userCache) get(ctx context.Context, username string) (UserResponse, error) {
	u, ok := uc.users[username]
	if !ok {
		var err error
		u, err = uc.driver.GetUser(ctx, username)
		if err != nil {
			return UserResponse{}, fmt.Errorf("resolving user %q: %w", username, err)
		}
		uc.users[username] = u
	}
	return newUserResponse(u), nil
}

func (s *Server) dialogueResponse(ctx context.Context, uc *userCache, d *dialogue.Dialogue) (DialogueResponse, error) {
	resp := DialogueResponse{
		ID:        d.ID,
		Users:     make([]UserResponse, 0, len(d.Users)),
		UpdatedAt: d.UpdatedAt,
	}
	for _, name := range d.Users {
		u, err := uc.get(ctx, name)
		if err != nil {
			return DialogueResponse{}, err
		}
		resp.Users = append(resp.Users, u)
	}
	return resp, nil
}

func (s *Server) messageResponse(c *fiber.Ctx, uc *userCache, m *dialogue.Message) (MessageResponse, error) {
	from, err := uc.get(c.UserContext(), m.FromUser)
	if err != nil {
		return MessageResponse{}, err
	}
	return MessageResponse{
		ID:        m.ID,
		FromUser:  from,
		Picture:   PictureLink{Link: c.BaseURL() + "/pictures/" + m.PictureID},
		IsEdited:  m.IsEdited,
		EditedAt:  m.EditedAt,
		CreatedAt: m.CreatedAt,
	}, nil
}

// memberDialogue loads the dialogue named by the :id parameter. Dialogues the
// caller is not a member of are reported as missing.
func (s *Server) memberDialogue(c *fiber.Ctx) (*dialogue.Dialogue, error) {
	d, err := s.driver.GetDialogue(c.UserContext(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if !d.HasMember(currentUser(c).Username) {
		return nil, storage.NotFoundError{Kind: "dialogue"}
	}
	return d, nil
}

// handleListDialogues handles GET /dialogues.
func (s *Server) handleListDialogues(c *fiber.Ctx) error {
	req, err := s.parsePage(c)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	me := currentUser(c)
	dialogues, count, err := s.driver.DialoguesByUser(ctx, me.Username, req.storage())
	if err != nil {
		return s.writeError(c, err)
	}

	uc := newUserCache(s.driver, me)
	results := make([]DialogueResponse, 0, len(dialogues))
	for _, d := range dialogues {
		resp, err := s.dialogueResponse(ctx, uc, d)
		if err != nil {
			return s.writeError(c, err)
		}
		results = append(results, resp)
	}

	page, err := newPage(c, req, count, results)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// handleCreateDialogue handles POST /dialogues. The existing dialogue is
// returned when the pair already has one.
func (s *Server) handleCreateDialogue(c *fiber.Ctx) error {
	var body CreateDialogueRequest
	if err := c.BodyParser(&body); err != nil {
		return detail(c, fiber.StatusBadRequest, detailMalformed)
	}
	if body.Username == "" {
		return s.writeError(c, account.ValidationErrors{
			"username": {"This field may not be blank."},
		})
	}

	ctx := c.UserContext()
	me := currentUser(c)

	other, err := s.driver.GetUser(ctx, body.Username)
	if errors.Is(err, storage.ErrNotFound) {
		return s.writeError(c, account.ValidationErrors{
			"username": {"User does not exist."},
		})
	}
	if err != nil {
		return s.writeError(c, err)
	}

	d, created, err := s.openPair(ctx, me.Username, other.Username)
	if err != nil {
		return s.writeError(c, err)
	}

	uc := newUserCache(s.driver, me)
	uc.users[other.Username] = other
	resp, err := s.dialogueResponse(ctx, uc, d)
	if err != nil {
		return s.writeError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(resp)
}

// openPair returns the dialogue between a and b, creating it if needed. A
// concurrent create for the same pair resolves to the winner's dialogue.
func (s *Server) openPair(ctx context.Context, a, b string) (*dialogue.Dialogue, bool, error) {
	d, err := dialogue.NewPair(a, b)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.driver.FindPairDialogue(ctx, a, b)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	err = s.driver.CreateDialogue(ctx, d)
	if errors.Is(err, storage.ErrAlreadyExists) {
		existing, err = s.driver.FindPairDialogue(ctx, a, b)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}

// handleListMessages handles GET /dialogues/:id/messages.
func (s *Server) handleListMessages(c *fiber.Ctx) error {
	req, err := s.parsePage(c)
	if err != nil {
		return err
	}

	d, err := s.memberDialogue(c)
	if err != nil {
		return s.writeError(c, err)
	}

	msgs, count, err := s.driver.MessagesByDialogue(c.UserContext(), d.ID, req.storage())
	if err != nil {
		return s.writeError(c, err)
	}

	uc := newUserCache(s.driver, currentUser(c))
	results := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp, err := s.messageResponse(c, uc, m)
		if err != nil {
			return s.writeError(c, err)
		}
		results = append(results, resp)
	}

	page, err := newPage(c, req, count, results)
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// handleSendMessage handles POST /dialogues/:id/messages. The uploaded
// picture is canonicalized and deduplicated before the message references it.
func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	d, err := s.memberDialogue(c)
	if err != nil {
		return s.writeError(c, err)
	}

	fh, err := c.FormFile(PictureField)
	if err != nil {
		return s.writeError(c, account.ValidationErrors{
			PictureField: {"No file was submitted."},
		})
	}

	f, err := fh.Open()
	if err != nil {
		return s.writeError(c, err)
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		return s.writeError(c, err)
	}

	ctx := c.UserContext()
	rec, created, err := s.pictures.Put(ctx, raw)
	if err != nil {
		return s.writeError(c, err)
	}

	me := currentUser(c)
	msg := dialogue.NewMessage(d.ID, me.Username, rec.ID)
	if err := s.driver.CreateMessage(ctx, msg); err != nil {
		return s.writeError(c, err)
	}

	s.logger.Debug("message sent",
		"dialogue", d.ID,
		"from", me.Username,
		"picture", rec.ID,
		"new_picture", created,
	)
	s.emitMessageSent(d, msg)

	resp, err := s.messageResponse(c, newUserCache(s.driver, me), msg)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (s *Server) emitMessageSent(d *dialogue.Dialogue, m *dialogue.Message) {
	if s.config.Events == nil {
		return
	}

	recipients := make([]string, 0, len(d.Users))
	for _, u := range d.Users {
		if u != m.FromUser {
			recipients = append(recipients, u)
		}
	}

	s.config.Events.Enqueue(eventstream.NewMessageSent(eventstream.MessageMeta{
		ID:         m.ID,
		DialogueID: m.DialogueID,
		FromUser:   m.FromUser,
		Recipients: recipients,
		PictureID:  m.PictureID,
	}))
}
