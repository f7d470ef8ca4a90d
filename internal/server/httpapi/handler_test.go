package httpapi

import (
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/booklend/internal/common"
	"github.com/dmitrijs2005/booklend/internal/server/models"
)

func addBookForm(title, genre, copies string) url.Values {
	v := url.Values{"title": {title}, "author": {"Author of " + title}, "genre": {genre}}
	if copies != "" {
		v.Set("total_copies", copies)
	}
	return v
}

// addBook creates a book through the admin form and returns its id.
func addBook(t *testing.T, admin *browser, title, genre, copies string) int64 {
	t.Helper()
	assertRedirect(t, admin.post("/admin/add", addBookForm(title, genre, copies)), "/admin")

	var page adminPage
	admin.getJSON("/admin", &page)
	for _, b := range page.Books {
		if b.Title == title {
			return b.ID
		}
	}
	t.Fatalf("book %q not listed", title)
	return 0
}

func TestAuth_SignupAndLogin(t *testing.T) {
	app := newTestApp(t, nil)
	b := app.browser(t)

	resp := b.post("/signup", url.Values{
		"username": {"alice"},
		"email":    {"alice@example.com"},
		"password": {"alice-pw"},
		"role":     {"Admin"},
	})
	assertRedirect(t, resp, "/login")
	assert.Equal(t, []Flash{{Category: flashSuccess, Message: "Account created. Please login."}}, b.flashes("/login"))

	resp = b.post("/login", url.Values{"username": {"alice"}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	var e errorJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, "Invalid credentials.", e.Error)

	b.login("alice")

	var page catalogPage
	b.getJSON("/catalog", &page)
	require.NotNil(t, page.User)
	assert.Equal(t, "alice", page.User.UserName)
	assert.Equal(t, string(models.RoleUser), page.User.Role)
	assert.Equal(t, []Flash{{Category: flashSuccess, Message: "Welcome, alice!"}}, page.Messages)

	// shown once
	assert.Empty(t, b.flashes("/catalog"))
}

func TestAuth_SessionCookieIsHttpOnly(t *testing.T) {
	app := newTestApp(t, nil)
	app.createAccount(t, "bob", models.RoleUser)
	b := app.browser(t)

	resp := b.post("/login", url.Values{"username": {"bob"}, "password": {"bob-pw"}})
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == common.SessionCookieName {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.NotEmpty(t, session.Value)
}

func TestAuth_SecureCookies(t *testing.T) {
	app := newTestApp(t, nil)
	app.server.SecureCookies = true
	app.createAccount(t, "ivy", models.RoleUser)
	b := app.browser(t)

	resp := b.post("/login", url.Values{"username": {"ivy"}, "password": {"ivy-pw"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	var session *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "session" {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.Secure)
}

func TestAuth_SignupErrors(t *testing.T) {
	app := newTestApp(t, nil)
	app.createAccount(t, "taken", models.RoleUser)
	b := app.browser(t)

	tests := []struct {
		name    string
		form    url.Values
		status  int
		message string
	}{
		{
			name:    "duplicate username",
			form:    url.Values{"username": {"taken"}, "email": {"other@example.com"}, "password": {"pw"}},
			status:  http.StatusConflict,
			message: "Username or email already exists.",
		},
		{
			name:    "duplicate email",
			form:    url.Values{"username": {"other"}, "email": {"taken@example.com"}, "password": {"pw"}},
			status:  http.StatusConflict,
			message: "Username or email already exists.",
		},
		{
			name:    "missing field",
			form:    url.Values{"username": {"x"}, "email": {""}, "password": {"pw"}},
			status:  http.StatusBadRequest,
			message: "All fields are required.",
		},
		{
			name:    "bad email",
			form:    url.Values{"username": {"x"}, "email": {"not-an-email"}, "password": {"pw"}},
			status:  http.StatusBadRequest,
			message: "Invalid email address.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := b.post("/signup", tt.form)
			assert.Equal(t, tt.status, resp.StatusCode)
			var e errorJSON
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
			assert.Equal(t, tt.message, e.Error)
		})
	}
}

func TestAuth_Logout(t *testing.T) {
	app := newTestApp(t, nil)
	app.createAccount(t, "carol", models.RoleUser)
	b := app.browser(t)
	b.login("carol")
	b.flashes("/catalog")

	assertRedirect(t, b.post("/logout", nil), "/login")
	assert.Equal(t, []Flash{{Category: flashInfo, Message: "Logged out."}}, b.flashes("/login"))

	assertRedirect(t, b.get("/my-borrows"), "/login")
}

func TestAuth_ForgedCookieIsAnonymous(t *testing.T) {
	app := newTestApp(t, nil)
	b := app.browser(t)

	u, err := url.Parse(app.srv.URL)
	require.NoError(t, err)
	b.c.Jar.SetCookies(u, []*http.Cookie{{Name: "session", Value: "forged.token.value", Path: "/"}})

	var page catalogPage
	resp := b.getJSON("/catalog", &page)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, page.User)
	assert.Empty(t, b.c.Jar.Cookies(u))
}

func TestLending_RequiresLogin(t *testing.T) {
	app := newTestApp(t, nil)
	b := app.browser(t)

	assertRedirect(t, b.post("/borrow/1", nil), "/login")
	assert.Equal(t, []Flash{{Category: flashWarning, Message: "Please login first."}}, b.flashes("/login"))

	assertRedirect(t, b.post("/return/1", nil), "/login")
	assertRedirect(t, b.get("/my-borrows"), "/login")
}

func TestLending_BorrowAndReturn(t *testing.T) {
	app := newTestApp(t, nil)
	app.createAccount(t, "admin", models.RoleAdmin)
	app.createAccount(t, "dave", models.RoleUser)
	app.createAccount(t, "erin", models.RoleUser)

	admin := app.browser(t)
	admin.login("admin")
	bookID := addBook(t, admin, "Dune", "SciFi", "2")
	detailPath := bookPath("/book", bookID)

	dave := app.browser(t)
	dave.login("dave")
	dave.flashes("/catalog")

	assertRedirect(t, dave.post(bookPath("/borrow", bookID), nil), "/my-borrows")
	var loans loansPage
	dave.getJSON("/my-borrows", &loans)
	assert.Equal(t, []Flash{{Category: flashSuccess, Message: "You borrowed 'Dune'."}}, loans.Messages)
	require.Len(t, loans.Borrows, 1)
	assert.Equal(t, bookID, loans.Borrows[0].BookID)
	assert.Equal(t, "Dune", loans.Borrows[0].Title)
	loanID := loans.Borrows[0].ID

	var detail bookPage
	dave.getJSON(detailPath, &detail)
	assert.True(t, detail.UserBorrowed)
	assert.Equal(t, 1, detail.Book.AvailableCopies)
	assert.Equal(t, 1, detail.Book.ActiveBorrows)

	assertRedirect(t, dave.post(bookPath("/borrow", bookID), nil), detailPath)
	assert.Equal(t, []Flash{{Category: flashWarning, Message: "You already borrowed this book. Return it before borrowing again."}},
		dave.flashes(detailPath))

	erin := app.browser(t)
	erin.login("erin")
	erin.flashes("/catalog")
	assertRedirect(t, erin.post(bookPath("/borrow", bookID), nil), "/my-borrows")
	erin.flashes("/my-borrows")

	// no copies left: availability is checked before the duplicate rule
	assertRedirect(t, dave.post(bookPath("/borrow", bookID), nil), detailPath)
	assert.Equal(t, []Flash{{Category: flashDanger, Message: "No copies available to borrow."}}, dave.flashes(detailPath))

	assertRedirect(t, erin.post(bookPath("/return", loanID), nil), "/catalog")
	assert.Equal(t, []Flash{{Category: flashDanger, Message: "Not authorized."}}, erin.flashes("/catalog"))

	assertRedirect(t, dave.post(bookPath("/return", loanID), nil), "/my-borrows")
	dave.getJSON("/my-borrows", &loans)
	assert.Equal(t, []Flash{{Category: flashSuccess, Message: "Book returned. Thank you!"}}, loans.Messages)
	assert.Empty(t, loans.Borrows)

	assertRedirect(t, dave.post(bookPath("/return", loanID), nil), "/my-borrows")
	assert.Equal(t, []Flash{{Category: flashInfo, Message: "Already returned."}}, dave.flashes("/my-borrows"))

	assertRedirect(t, dave.post(bookPath("/borrow", bookID), nil), "/my-borrows")
}

func TestLending_UnknownIDs(t *testing.T) {
	app := newTestApp(t, nil)
	app.createAccount(t, "frank", models.RoleUser)
	b := app.browser(t)
	b.login("frank")

	assert.Equal(t, http.StatusNotFound, b.post("/borrow/404", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, b.post("/return/404", nil).StatusCode)
	assert.Equal(t, http.StatusNotFound, b.post("/borrow/zero", nil).StatusCode)
}

func TestCatalog_Filters(t *testing.T) {
	app := newTestApp(t, nil)
	app.createAccount(t, "admin", models.RoleAdmin)
	admin := app.browser(t)
	admin.login("admin")

	addBook(t, admin, "Dune", "SciFi", "2")
	addBook(t, admin, "Emma", "Classic", "1")
	addBook(t, admin, "Hyperion", "scifi", "1")

	anon := app.browser(t)

	titles := func(path string) []string {
		var page catalogPage
		anon.getJSON(path, &page)
		out := make([]string, 0, len(page.Books))
		for _, b := range page.Books {
			out = append(out, b.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Dune", "Emma", "Hyperion"}, titles("/catalog"))
	assert.Equal(t, []string{"Dune", "Hyperion"}, titles("/catalog?genre=SCIFI"))
	assert.Equal(t, []string{"Emma"}, titles("/catalog?q=emm"))
	assert.Equal(t, []string{"Dune"}, titles("/catalog?q="+url.QueryEscape("author of d")))
	assert.Empty(t, titles("/catalog?genre=Poetry"))
}

func TestAdmin_Access(t *testing.T) {
	app := newTestApp(t, nil)
	app.createAccount(t, "gina", models.RoleUser)

	anon := app.browser(t)
	assertRedirect(t, anon.get("/admin"), "/login")

	user := app.browser(t)
	user.login("gina")
	user.flashes("/catalog")

	for _, path := range []string{"/admin/add", "/admin/edit/1", "/admin/delete/1", "/admin/covers/1"} {
		assertRedirect(t, user.post(path, addBookForm("X", "", "1")), "/catalog")
	}
	assertRedirect(t, user.get("/admin"), "/catalog")
	assert.Equal(t, Flash{Category: flashDanger, Message: "Admin access required."}, user.flashes("/catalog")[0])
}

func TestAdmin_AddEditDelete(t *testing.T) {
	app := newTestApp(t, nil)
	app.createAccount(t, "admin", models.RoleAdmin)
	app.createAccount(t, "hank", models.RoleUser)

	admin := app.browser(t)
	admin.login("admin")

	resp := admin.post("/admin/add", url.Values{"title": {""}, "author": {"x"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var e errorJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&e))
	assert.Equal(t, "Title and author required.", e.Error)

	for _, copies := range []string{"0", "-2", "many", "2147483648"} {
		resp = admin.post("/admin/add", addBookForm("Bad", "", copies))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, copies)
	}

	id := addBook(t, admin, "Solaris", "SciFi", "")
	var dash adminPage
	admin.getJSON("/admin", &dash)
	require.Len(t, dash.Books, 1)
	assert.Equal(t, 1, dash.Books[0].TotalCopies)
	assert.False(t, dash.CoversEnabled)

	assertRedirect(t, admin.post(bookPath("/admin/edit", id), addBookForm("Solaris (2nd ed.)", "Classic", "3")), "/admin")
	var form bookPage
	admin.getJSON(bookPath("/admin/edit", id), &form)
	assert.Equal(t, []Flash{{Category: flashSuccess, Message: "Book updated."}}, form.Messages)
	assert.Equal(t, "Solaris (2nd ed.)", form.Book.Title)
	assert.Equal(t, 3, form.Book.TotalCopies)

	assert.Equal(t, http.StatusNotFound, admin.post("/admin/edit/999", addBookForm("Y", "", "1")).StatusCode)

	user := app.browser(t)
	user.login("hank")
	assertRedirect(t, user.post(bookPath("/borrow", id), nil), "/my-borrows")

	assertRedirect(t, admin.post(bookPath("/admin/delete", id), nil), "/admin")
	assert.Equal(t, []Flash{{Category: flashDanger, Message: "Cannot delete book while copies are borrowed."}}, admin.flashes("/admin"))

	var loans loansPage
	user.getJSON("/my-borrows", &loans)
	require.Len(t, loans.Borrows, 1)
	assertRedirect(t, user.post(bookPath("/return", loans.Borrows[0].ID), nil), "/my-borrows")

	assertRedirect(t, admin.post(bookPath("/admin/delete", id), nil), "/admin")
	admin.getJSON("/admin", &dash)
	assert.Equal(t, []Flash{{Category: flashInfo, Message: "Book deleted."}}, dash.Messages)
	assert.Empty(t, dash.Books)

	assert.Equal(t, http.StatusNotFound, admin.post(bookPath("/admin/delete", id), nil).StatusCode)
}

func TestAdmin_CoverUpload(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		app := newTestApp(t, nil)
		app.createAccount(t, "admin", models.RoleAdmin)
		admin := app.browser(t)
		admin.login("admin")
		id := addBook(t, admin, "Ubik", "", "1")

		assert.Equal(t, http.StatusNotImplemented, admin.post(bookPath("/admin/covers", id), nil).StatusCode)
	})

	t.Run("enabled", func(t *testing.T) {
		fc := &stubCovers{}
		app := newTestApp(t, fc)
		app.createAccount(t, "admin", models.RoleAdmin)
		admin := app.browser(t)
		admin.login("admin")
		id := addBook(t, admin, "Ubik", "", "1")

		resp := admin.post(bookPath("/admin/covers", id), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out coverUploadJSON
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		require.Len(t, fc.keys, 1)
		assert.Equal(t, "https://covers.test/put/"+fc.keys[0], out.UploadURL)
		assert.True(t, strings.HasPrefix(fc.keys[0], "covers/"))

		var detail bookPage
		app.browser(t).getJSON(bookPath("/book", id), &detail)
		assert.True(t, detail.Book.HasCover)
		assert.Equal(t, "https://covers.test/get/"+fc.keys[0], detail.CoverURL)

		assert.Equal(t, http.StatusNotFound, admin.post("/admin/covers/999", nil).StatusCode)
	})
}
