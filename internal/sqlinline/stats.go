package sqlinline

const QPlatformStats = `--sql 48a66672-4fee-40db-a5af-8fffaf09cd1f
select
  (select count(*) from resources) as total_resources,
  (select coalesce(sum(downloads), 0) from resources) as total_downloads,
  (select count(*) from users) as total_users,
  (select count(*) from users where plan = 'pro') as pro_users;
`

const QTopResourcesByDownloads = `--sql bf915643-f1cb-4828-9999-acfca23783d9
select id, title, author, category, downloads, average_rating
from resources
order by downloads desc, created_at desc
limit $1::int;
`
