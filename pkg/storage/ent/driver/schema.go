package entdriver

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/papercomputeco/courier/pkg/picture"
)

var (
	// PicturesColumns holds the columns for the "pictures" table.
	PicturesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "digest", Type: field.TypeString, Size: 64},
		{Name: "checksum", Type: field.TypeString, Size: 64},
		{Name: "data", Type: field.TypeBytes, Size: picture.MaxBytes},
		{Name: "size", Type: field.TypeInt},
		{Name: "created_at", Type: field.TypeTime},
	}
	// PicturesTable holds the schema information for the "pictures" table.
	PicturesTable = &schema.Table{
		Name:       "pictures",
		Columns:    PicturesColumns,
		PrimaryKey: []*schema.Column{PicturesColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "picture_digest_checksum",
				Unique:  true,
				Columns: []*schema.Column{PicturesColumns[1], PicturesColumns[2]},
			},
		},
	}

	// UsersColumns holds the columns for the "users" table.
	UsersColumns = []*schema.Column{
		{Name: "username", Type: field.TypeString, Unique: true, Size: 150},
		{Name: "first_name", Type: field.TypeString, Size: 150},
		{Name: "last_name", Type: field.TypeString, Size: 150},
		{Name: "password_hash", Type: field.TypeBytes},
		{Name: "created_at", Type: field.TypeTime},
	}
	// UsersTable holds the schema information for the "users" table.
	UsersTable = &schema.Table{
		Name:       "users",
		Columns:    UsersColumns,
		PrimaryKey: []*schema.Column{UsersColumns[0]},
	}

	// SessionsColumns holds the columns for the "sessions" table.
	SessionsColumns = []*schema.Column{
		{Name: "token", Type: field.TypeString, Unique: true},
		{Name: "username", Type: field.TypeString, Size: 150},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "expires_at", Type: field.TypeTime},
	}
	// SessionsTable holds the schema information for the "sessions" table.
	SessionsTable = &schema.Table{
		Name:       "sessions",
		Columns:    SessionsColumns,
		PrimaryKey: []*schema.Column{SessionsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "sessions_users_sessions",
				Columns:    []*schema.Column{SessionsColumns[1]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
	}

	// DialoguesColumns holds the columns for the "dialogues" table.
	DialoguesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "pair_key", Type: field.TypeString, Unique: true},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "updated_at", Type: field.TypeTime},
	}
	// DialoguesTable holds the schema information for the "dialogues" table.
	DialoguesTable = &schema.Table{
		Name:       "dialogues",
		Columns:    DialoguesColumns,
		PrimaryKey: []*schema.Column{DialoguesColumns[0]},
		Indexes: []*schema.Index{
			{
				Name:    "dialogue_updated_at",
				Unique:  false,
				Columns: []*schema.Column{DialoguesColumns[3]},
			},
		},
	}

	// DialogueMembersColumns holds the columns for the "dialogue_members" table.
	DialogueMembersColumns = []*schema.Column{
		{Name: "dialogue_id", Type: field.TypeString},
		{Name: "username", Type: field.TypeString, Size: 150},
	}
	// DialogueMembersTable holds the schema information for the "dialogue_members" table.
	DialogueMembersTable = &schema.Table{
		Name:       "dialogue_members",
		Columns:    DialogueMembersColumns,
		PrimaryKey: []*schema.Column{DialogueMembersColumns[0], DialogueMembersColumns[1]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "dialogue_members_dialogues_members",
				Columns:    []*schema.Column{DialogueMembersColumns[0]},
				RefColumns: []*schema.Column{DialoguesColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "dialogue_members_users_dialogues",
				Columns:    []*schema.Column{DialogueMembersColumns[1]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "dialoguemember_username",
				Unique:  false,
				Columns: []*schema.Column{DialogueMembersColumns[1]},
			},
		},
	}

	// MessagesColumns holds the columns for the "messages" table.
	MessagesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString, Unique: true},
		{Name: "dialogue_id", Type: field.TypeString},
		{Name: "from_user", Type: field.TypeString, Nullable: true, Size: 150},
		{Name: "picture_id", Type: field.TypeString, Nullable: true},
		{Name: "is_edited", Type: field.TypeBool, Default: false},
		{Name: "edited_at", Type: field.TypeTime},
		{Name: "created_at", Type: field.TypeTime},
	}
	// MessagesTable holds the schema information for the "messages" table.
	MessagesTable = &schema.Table{
		Name:       "messages",
		Columns:    MessagesColumns,
		PrimaryKey: []*schema.Column{MessagesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "messages_dialogues_messages",
				Columns:    []*schema.Column{MessagesColumns[1]},
				RefColumns: []*schema.Column{DialoguesColumns[0]},
				OnDelete:   schema.Cascade,
			},
			{
				Symbol:     "messages_users_messages",
				Columns:    []*schema.Column{MessagesColumns[2]},
				RefColumns: []*schema.Column{UsersColumns[0]},
				OnDelete:   schema.SetNull,
			},
			{
				Symbol:     "messages_pictures_messages",
				Columns:    []*schema.Column{MessagesColumns[3]},
				RefColumns: []*schema.Column{PicturesColumns[0]},
				OnDelete:   schema.SetNull,
			},
		},
		Indexes: []*schema.Index{
			{
				Name:    "message_dialogue_id_created_at",
				Unique:  false,
				Columns: []*schema.Column{MessagesColumns[1], MessagesColumns[6]},
			},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		PicturesTable,
		UsersTable,
		SessionsTable,
		DialoguesTable,
		DialogueMembersTable,
		MessagesTable,
	}
)

func init() {
	SessionsTable.ForeignKeys[0].RefTable = UsersTable
	DialogueMembersTable.ForeignKeys[0].RefTable = DialoguesTable
	DialogueMembersTable.ForeignKeys[1].RefTable = UsersTable
	MessagesTable.ForeignKeys[0].RefTable = DialoguesTable
	MessagesTable.ForeignKeys[1].RefTable = UsersTable
	MessagesTable.ForeignKeys[2].RefTable = PicturesTable
}
