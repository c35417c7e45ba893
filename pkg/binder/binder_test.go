package binder

import (
	"bytes"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type params struct {
	Hello string `json:"hello" mod:"trim" validate:"max=9"`
	Omit  string `json:"-"`
}

var (
	goodJSON             = `{"hello":" world "}`
	unknownFieldsErrJSON = `{"hello":"world","foo":"bar"}`
	typeErrJSON          = `{"hello":123}`
	validationErrJSON    = `{"hello":"0123456789"}`
)

func TestNew(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)
	assert.NotNil(t, b)

	t.Run("only allows application/json and application/x-www-form-urlencoded", func(tt *testing.T) {
		c := newContext(goodJSON, echo.MIMEApplicationXML)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "Unsupported Media Type")
	})

	t.Run("disallows unknown fields", func(tt *testing.T) {
		c := newContext(unknownFieldsErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `Unknown Parameter "foo"`)
	})

	t.Run("returns a good message for type errors", func(tt *testing.T) {
		c := newContext(typeErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), `"hello" should be of type string`)
	})

	t.Run("use mod tag to modify params", func(tt *testing.T) {
		c := newContext(goodJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		require.NoError(tt, err)
		assert.Equal(tt, "world", p.Hello)
	})

	t.Run("use validate tag to validate params", func(tt *testing.T) {
		c := newContext(validationErrJSON, echo.MIMEApplicationJSON)
		p := params{}
		err = b.Bind(&p, c)
		assert.Contains(tt, err.Error(), "length must be less than or equal to 9 characters")
	})
}

type uploadParams struct {
	Title     string                             `form:"title" json:"title" mod:"trim" validate:"required"`
	Category  string                             `form:"category" json:"category" validate:"required,category"`
	IsPublic  bool                               `form:"is_public" json:"is_public"`
	FormFiles map[string][]*multipart.FileHeader `form:"-" json:"-"`
}

type codeParams struct {
	Code string `json:"room_code" mod:"trim,ucase" validate:"required,len=6,code"`
}

func TestBind_Multipart(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("title", "  Moonlight "))
	require.NoError(t, w.WriteField("category", "Fantasy"))
	require.NoError(t, w.WriteField("is_public", "1"))
	for _, name := range []string{"a.jpg", "b.png"} {
		fw, err := w.CreateFormFile("cover_image[]", name)
		require.NoError(t, err)
		_, err = fw.Write([]byte("img"))
		require.NoError(t, err)
	}
	fw, err := w.CreateFormFile("audio_file", "book.mp3")
	require.NoError(t, err)
	_, err = fw.Write([]byte("ID3"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	c := newContext(body.String(), w.FormDataContentType())
	p := uploadParams{}
	require.NoError(t, b.Bind(&p, c))

	assert.Equal(t, "Moonlight", p.Title)
	assert.True(t, p.IsPublic)
	require.Len(t, p.FormFiles["cover_image"], 2)
	assert.Equal(t, "a.jpg", p.FormFiles["cover_image"][0].Filename)
	assert.Equal(t, "b.png", p.FormFiles["cover_image"][1].Filename)
	require.Len(t, p.FormFiles["audio_file"], 1)
}

func TestBind_CategoryValidator(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	c := newContext(`{"title":"x","category":"Cooking","is_public":false}`, echo.MIMEApplicationJSON)
	p := uploadParams{}
	err = b.Bind(&p, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"category" must be one of the following`)
}

func TestBind_CodeValidator(t *testing.T) {
	t.Parallel()
	b, err := New()
	require.NoError(t, err)

	t.Run("normalizes case", func(tt *testing.T) {
		c := newContext(`{"room_code":" 7f3k9a "}`, echo.MIMEApplicationJSON)
		p := codeParams{}
		require.NoError(tt, b.Bind(&p, c))
		assert.Equal(tt, "7F3K9A", p.Code)
	})

	t.Run("requires exact length", func(tt *testing.T) {
		c := newContext(`{"room_code":"ABC"}`, echo.MIMEApplicationJSON)
		p := codeParams{}
		err := b.Bind(&p, c)
		require.Error(tt, err)
		assert.Contains(tt, err.Error(), `"room_code" must be exactly 6 characters`)
	})

	t.Run("rejects symbols", func(tt *testing.T) {
		c := newContext(`{"room_code":"AB-C12"}`, echo.MIMEApplicationJSON)
		p := codeParams{}
		err := b.Bind(&p, c)
		require.Error(tt, err)
		assert.Contains(tt, err.Error(), "uppercase letters and digits")
	})
}

func newContext(payload, mime string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(echo.POST, "/", strings.NewReader(payload))
	req.Header.Set(echo.HeaderContentType, mime)
	rr := httptest.NewRecorder()
	return e.NewContext(req, rr)
}
