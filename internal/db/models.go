package db

type ExportArtifact struct {
	ID        uint   `gorm:"column:id;primaryKey;autoIncrement"`
	Mode      string `gorm:"column:mode;not null;default:''"`
	Filename  string `gorm:"column:filename;not null;default:''"`
	Path      string `gorm:"column:path;not null;default:''"`
	Size      int64  `gorm:"column:size;not null;default:0"`
	CreatedAt int64  `gorm:"column:created_at;not null;default:0"`
}

func (ExportArtifact) TableName() string { return "export_artifacts" }
