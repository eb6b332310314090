package storageuri

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocalPath(t *testing.T) {
	u, err := ParseURI("/backups/nightly")
	require.NoError(t, err)
	assert.Equal(t, SchemeLocal, u.Scheme)
	assert.Equal(t, "/backups/nightly", u.Path)
}

func TestParseFTPURI(t *testing.T) {
	u, err := ParseURI("ftp://backupuser@ftp.example.com:2121/archives")
	require.NoError(t, err)
	assert.Equal(t, SchemeFTP, u.Scheme)
	assert.Equal(t, "backupuser", u.Login)
	assert.Equal(t, "ftp.example.com", u.Host)
	assert.Equal(t, 2121, u.Port)
	assert.Equal(t, "/archives", u.Path)
}

func TestParseSFTPURI(t *testing.T) {
	u, err := ParseURI("sftp://root@10.0.0.5/srv/backups")
	require.NoError(t, err)
	assert.Equal(t, SchemeSFTP, u.Scheme)
	assert.Equal(t, "10.0.0.5", u.Host)
}

func TestParseUnknownScheme(t *testing.T) {
	_, err := ParseURI("s3://bucket/path")
	assert.Error(t, err)
}

func TestParseEmpty(t *testing.T) {
	_, err := ParseURI("")
	assert.Error(t, err)
}
