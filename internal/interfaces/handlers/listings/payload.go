package listings

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"strconv"
	"strings"

	listsvc "campus-market/internal/application/listings"
	"campus-market/internal/infrastructure/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// maxImages caps the files accepted in one create or update request.
const maxImages = 10

var (
	errTooManyImages = errors.New("Too many images")
	errInvalidBody   = errors.New("Invalid request body")
)

// listingPayload is the listing form, shared by create and update. Pointer
// fields distinguish "absent" from a zero value.
type listingPayload struct {
	Title          *string                `json:"title"`
	Course         *string                `json:"course"`
	Category       *string                `json:"category"`
	Attributes     map[string]interface{} `json:"attributes"`
	Price          *float64               `json:"price"`
	Condition      *string                `json:"condition"`
	Description    *string                `json:"description"`
	ContactByEmail *bool                  `json:"contact_by_email"`
	ContactEmail   *string                `json:"contact_email"`
	ContactByPhone *bool                  `json:"contact_by_phone"`
	ContactPhone   *string                `json:"contact_phone"`
	Status         *string                `json:"status"`
	KeepImageIDs   *[]uuid.UUID           `json:"keep_image_ids"`
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm)
}

// parsePayload reads the listing form from JSON or multipart and returns the
// uploaded images; the caller must invoke release once the files are consumed.
// Returned errors are safe to show to the client.
func parsePayload(c *fiber.Ctx) (p listingPayload, files []storage.File, release func(), err error) {
	release = func() {}
	if !isMultipart(c) {
		if c.BodyParser(&p) != nil {
			err = errInvalidBody
		}
		return
	}
	form, ferr := c.MultipartForm()
	if ferr != nil {
		err = errInvalidBody
		return
	}
	if p, err = payloadFromForm(form.Value); err != nil {
		return
	}
	files, release, err = openImages(form.File["images"])
	return
}

func payloadFromForm(values map[string][]string) (listingPayload, error) {
	var p listingPayload
	str := func(key string) *string {
		if v, ok := values[key]; ok && len(v) > 0 {
			s := v[0]
			return &s
		}
		return nil
	}
	p.Title = str("title")
	p.Course = str("course")
	p.Category = str("category")
	p.Condition = str("condition")
	p.Description = str("description")
	p.ContactEmail = str("contact_email")
	p.ContactPhone = str("contact_phone")
	p.Status = str("status")

	if s := str("price"); s != nil {
		f, err := strconv.ParseFloat(strings.TrimSpace(*s), 64)
		if err != nil {
			return p, listsvc.ErrInvalidPrice
		}
		p.Price = &f
	}
	for key, dst := range map[string]**bool{"contact_by_email": &p.ContactByEmail, "contact_by_phone": &p.ContactByPhone} {
		if s := str(key); s != nil {
			b, err := strconv.ParseBool(strings.TrimSpace(*s))
			if err != nil {
				return p, errors.New("Invalid value for " + key)
			}
			*dst = &b
		}
	}
	if s := str("attributes"); s != nil && strings.TrimSpace(*s) != "" {
		if err := json.Unmarshal([]byte(*s), &p.Attributes); err != nil {
			return p, errors.New("attributes must be a JSON object")
		}
	}
	if raw, ok := values["keep_image_ids"]; ok {
		ids, err := parseIDs(raw)
		if err != nil {
			return p, err
		}
		p.KeepImageIDs = &ids
	}
	return p, nil
}

// parseIDs accepts repeated fields, comma separated values or a JSON array.
func parseIDs(raw []string) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if strings.HasPrefix(v, "[") {
			var list []uuid.UUID
			if err := json.Unmarshal([]byte(v), &list); err != nil {
				return nil, errors.New("Invalid keep_image_ids")
			}
			ids = append(ids, list...)
			continue
		}
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := uuid.Parse(part)
			if err != nil {
				return nil, errors.New("Invalid keep_image_ids")
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func openImages(headers []*multipart.FileHeader) ([]storage.File, func(), error) {
	if len(headers) > maxImages {
		return nil, func() {}, errTooManyImages
	}
	var closers []io.Closer
	release := func() {
		for _, c := range closers {
			c.Close()
		}
	}
	files := make([]storage.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			release()
			return nil, func() {}, errInvalidBody
		}
		closers = append(closers, f)
		files = append(files, storage.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Body:        f,
		})
	}
	return files, release, nil
}

func (p listingPayload) createInput() listsvc.CreateListingInput {
	in := listsvc.CreateListingInput{Attributes: p.Attributes}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&in.Title, p.Title)
	set(&in.Course, p.Course)
	set(&in.Category, p.Category)
	set(&in.Condition, p.Condition)
	set(&in.Description, p.Description)
	set(&in.ContactEmail, p.ContactEmail)
	set(&in.ContactPhone, p.ContactPhone)
	set(&in.Status, p.Status)
	if p.Price != nil {
		in.Price = *p.Price
	}
	if p.ContactByEmail != nil {
		in.ContactByEmail = *p.ContactByEmail
	}
	if p.ContactByPhone != nil {
		in.ContactByPhone = *p.ContactByPhone
	}
	return in
}

func (p listingPayload) updateInput() listsvc.UpdateListingInput {
	in := listsvc.UpdateListingInput{
		Title:          p.Title,
		Course:         p.Course,
		Category:       p.Category,
		Attributes:     p.Attributes,
		Price:          p.Price,
		Condition:      p.Condition,
		Description:    p.Description,
		ContactByEmail: p.ContactByEmail,
		ContactEmail:   p.ContactEmail,
		ContactByPhone: p.ContactByPhone,
		ContactPhone:   p.ContactPhone,
		Status:         p.Status,
	}
	if p.KeepImageIDs != nil {
		in.KeepImageIDs = *p.KeepImageIDs
		if in.KeepImageIDs == nil {
			in.KeepImageIDs = []uuid.UUID{}
		}
	}
	return in
}
